package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	components map[string]pinger
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		components: map[string]pinger{
			"postgres": infra.Postgres(),
			"redis":    infra.Redis(),
		},
	}
}

// check pings every component concurrently and reports failures by name
func (h *HealthChecker) check(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = make(map[string]error)
	)

	for name, component := range h.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := component.Ping(ctx); err != nil {
				mu.Lock()
				failed[name] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return failed
}

func (h *HealthChecker) Handler(c *gin.Context) {
	failed := h.check(c.Request.Context())

	checks := make(gin.H, len(h.components))
	for name := range h.components {
		if err, ok := failed[name]; ok {
			checks[name] = gin.H{"status": "fail", "error": err.Error()}
			continue
		}
		checks[name] = gin.H{"status": "pass"}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "fail", "checks": checks})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pass", "checks": checks})
}
