package acceptance

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

func TestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("acceptance tests need PostgreSQL and Redis")
	}
	suite.Run(t, new(Suite))
}
