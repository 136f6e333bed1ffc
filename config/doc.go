// Package config loads obrforecastd settings from the environment.
//
// Every setting has an OBR_-prefixed variable and a default. Values are
// expanded strictly: ${VAR} must be set, and $$ yields a literal dollar.
// Credential settings may instead hold a secret reference,
//
//	secretref:file:/run/secrets/admin_key
//	secretref:env:ADMIN_KEY
//
// which Load resolves through the registered Providers.
package config
