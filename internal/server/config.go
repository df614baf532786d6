package server

import "os"

// DefaultPort is used when QUIZLER_PORT is not set
const DefaultPort = "80"

// Config holds server configuration
type Config struct {
	Port string
}

// LoadConfig reads server configuration from the environment
func LoadConfig() Config {
	port := os.Getenv("QUIZLER_PORT")
	if port == "" {
		port = DefaultPort
	}
	return Config{Port: port}
}
