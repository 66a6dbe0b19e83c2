// Package config loads the storefront client configuration.
//
// Configuration is resolved in layers, each overriding the previous one:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. The YAML file, ~/.config/storefront/config.yaml unless --config names another
//  3. A .env file in the working directory (never overrides variables already set)
//  4. STOREFRONT_* environment variables
//
// The merged result is validated before use. Validation problems are reported
// together as ValidationErrors wrapped in a *ConfigurationError.
//
// # Example
//
//	auth:
//	  baseURL: https://auth.shop.example.com
//	  clientID: fp_frontend
//	  redirectURI: http://localhost:3000/callback
//	  scopes: [openid, profile, api.read]
//	  renewal: refresh_token
//	gateway:
//	  baseURL: https://api.shop.example.com
//	  timeout: 30s
//	session:
//	  storage: keyring
//	  checkInterval: 1m
//	  expiringSoon: 2m
//	logging:
//	  level: info
//	  file: /var/log/storefront/watch.log
package config
