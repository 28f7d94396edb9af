package analyzer

import (
	"fmt"
	"sort"

	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// Correlation thresholds that trigger a recommendation.
const (
	strongCorrelation       = 0.5
	rainDropCorrelation     = -0.3
	categoryTempCorrelation = 0.6
)

// recommend derives the advisory text from the coefficients by plain
// thresholding. The same report always yields the same recommendations
// in the same order.
func recommend(report *models.CorrelationReport) []string {
	var out []string

	if report.Temperature > strongCorrelation {
		out = append(out,
			"Forte correlação positiva com temperatura. "+
				"Considere aumentar estoque em dias quentes e promover produtos refrescantes.")
	} else if report.Temperature < -strongCorrelation {
		out = append(out,
			"Correlação negativa com temperatura. "+
				"Prepare promoções para dias quentes e foque em produtos adequados ao frio.")
	}

	if report.Rain < rainDropCorrelation {
		out = append(out,
			"Vendas caem em dias chuvosos. "+
				"Considere serviços de delivery e promoções online para esses dias.")
	}

	categories := make([]string, 0, len(report.ByCategory))
	for c := range report.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		if report.ByCategory[c].Temperature > categoryTempCorrelation {
			out = append(out, fmt.Sprintf(
				"%s tem alta sensibilidade à temperatura. "+
					"Ajuste previsões de demanda conforme previsão do tempo.", c))
		}
	}

	if len(out) == 0 {
		out = append(out,
			"Não foram identificadas correlações fortes. "+
				"Continue monitorando ou analise um período maior.")
	}

	return out
}
