package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-report-engine/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "grader", Password: "secret", Name: "marks", SSLMode: "require"})
	assert.Equal(t, "host=db port=5433 user=grader password=secret dbname=marks sslmode=require", dsn)
}
