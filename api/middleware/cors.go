package middleware

import (
	"strings"
	"time"

	"github.com/OldStager01/heartrisk/pkg/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS applies cfg to the web API and an any-origin policy to requests under
// openPrefixes. It must be installed globally so preflight requests, which
// match no route, still get answered.
func CORS(cfg config.CORSConfig, openPrefixes ...string) gin.HandlerFunc {
	web := cors.New(webCORSConfig(cfg))
	open := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", TraceIDHeader},
		ExposeHeaders:   []string{TraceIDHeader},
		MaxAge:          12 * time.Hour,
	})

	return func(c *gin.Context) {
		for _, prefix := range openPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				open(c)
				return
			}
		}
		web(c)
	}
}

func webCORSConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", TraceIDHeader}
	}
	// A wildcard with credentials is rejected by browsers, so it only
	// becomes AllowAllOrigins without them.
	if containsWildcard(cfg.AllowedOrigins) && !cfg.AllowCredentials {
		c.AllowAllOrigins = true
	} else if len(cfg.AllowedOrigins) > 0 {
		c.AllowOrigins = cfg.AllowedOrigins
	} else {
		c.AllowAllOrigins = true
	}
	return c
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
