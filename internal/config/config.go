package config

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Env knobs read at startup. Cache knobs are read separately by the
// structuring cache constructor.
const (
	EnvPort           = "PORT"
	EnvModel          = "BERSONA_MODEL"
	EnvFallbackModels = "BERSONA_FALLBACK_MODELS"
)

type Config struct {
	Port           string
	Model          string
	FallbackModels []string
}

// Load reads .env, flags and environment. PORT overrides the -port flag;
// BERSONA_FALLBACK_MODELS is a comma-separated model list.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv(EnvPort); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	return &Config{
		Port:           *port,
		Model:          firstNonEmpty(strings.TrimSpace(os.Getenv(EnvModel)), "stub-1"),
		FallbackModels: splitModels(os.Getenv(EnvFallbackModels)),
	}, nil
}

func splitModels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
