// Package config provides configuration loading, validation, and hot
// reloading for the routing engine.
//
// Configuration is read from a YAML file with ${VAR} and ${VAR:-default}
// environment substitution, then overridden by well-known environment
// variables (ENVIRONMENT, API_HOST, API_PORT, DEFAULT_ROUTING_STRATEGY,
// HEALTH_CHECK_INTERVAL, and friends). A production environment rejects
// debug mode and wildcard CORS origins.
//
// The Watcher reloads and revalidates the file on change via fsnotify,
// so route definitions can be edited without restarting the engine.
package config
