package config

import (
	"fmt"
	"os"
)

const defaultDSN = "clima:clima123@tcp(localhost:3306)/clima_negocios?parseTime=true"

// GetDatabaseDSN resolves the MySQL connection string. A complete set
// of DB_* variables wins over a full DATABASE_DSN; without either the
// local development default is used.
func GetDatabaseDSN() string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")

	for _, part := range []string{user, password, host, port, name} {
		if part == "" {
			if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
				return dsn
			}
			return defaultDSN
		}
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, name)
}
