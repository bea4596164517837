package vault

import (
	"path/filepath"
	"testing"

	"dcat-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.VaultConfig
		wantErr  bool
		wantType string
	}{
		{
			name:     "memory vault",
			cfg:      config.VaultConfig{Type: "memory", Name: "mem"},
			wantType: "*vault.MemoryVault",
		},
		{
			name: "filesystem vault",
			cfg: config.VaultConfig{
				Type:        "filesystem",
				Name:        "local",
				FSVaultRoot: filepath.Join(t.TempDir(), "vault"),
			},
			wantType: "*vault.FileSystemVault",
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.VaultConfig{Type: "filesystem", Name: "local"},
			wantErr: true,
		},
		{
			name: "s3 vault with endpoint",
			cfg: config.VaultConfig{
				Type:              "s3",
				Name:              "remote",
				S3Bucket:          "catalogs",
				S3Endpoint:        "http://127.0.0.1:9000",
				S3AccessKeyID:     "key",
				S3SecretAccessKey: "secret",
			},
			wantType: "*vault.S3Vault",
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.VaultConfig{Type: "s3", Name: "remote", S3Region: "us-east-1"},
			wantErr: true,
		},
		{
			name:    "unknown vault type",
			cfg:     config.VaultConfig{Type: "tape", Name: "old"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Errorf("NewVaultFromConfig() = %v, want nil", got)
				}
				return
			}
			if typ := typeName(got); typ != tt.wantType {
				t.Errorf("NewVaultFromConfig() type = %s, want %s", typ, tt.wantType)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *MemoryVault:
		return "*vault.MemoryVault"
	case *FileSystemVault:
		return "*vault.FileSystemVault"
	case *S3Vault:
		return "*vault.S3Vault"
	default:
		return "unknown"
	}
}
