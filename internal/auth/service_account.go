package auth

import (
	"encoding/json"
	"fmt"
)

// ServiceAccountKey represents the JSON structure of a service account key file
type ServiceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// ParseServiceAccountKey validates a service account key file's contents
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	if key.Type != "service_account" {
		return nil, fmt.Errorf("invalid service account key type: %s", key.Type)
	}
	if key.ClientEmail == "" {
		return nil, fmt.Errorf("missing client_email in service account key")
	}
	if key.PrivateKey == "" {
		return nil, fmt.Errorf("missing private_key in service account key")
	}
	return &key, nil
}
