package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/dl-alexandre/docloader/internal/auth"
	"github.com/dl-alexandre/docloader/internal/backend"
	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Credential management",
	Long:  "Manage the Google credentials used by the drive and gcs backends",
}

var authImportKeyCmd = &cobra.Command{
	Use:   "import-key <key.json>",
	Short: "Store a service account key",
	Long: `Store a service account JSON key in the system keyring (or an encrypted
file when no keyring is available) under a profile name.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthImportKey,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <profile>",
	Short: "Remove a stored service account key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential status",
	Long:  "Display the configured credential source and stored profiles",
	RunE:  runAuthStatus,
}

var (
	authProfile    string
	authSetDefault bool
	authVerify     bool
)

func init() {
	authImportKeyCmd.Flags().StringVar(&authProfile, "profile", "default", "Profile name to store the key under")
	authImportKeyCmd.Flags().BoolVar(&authSetDefault, "set-default", false, "Use this profile for future runs")
	authStatusCmd.Flags().BoolVar(&authVerify, "verify", false, "Fetch a token to confirm the credentials work")

	authCmd.AddCommand(authImportKeyCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

// authStatus is the data returned by auth status
type authStatus struct {
	Provider      string   `json:"provider"`
	Email         string   `json:"serviceAccountEmail,omitempty"`
	KeyStore      string   `json:"keyStore"`
	Profiles      []string `json:"profiles"`
	Verified      bool     `json:"verified"`
	VerifyError   string   `json:"verifyError,omitempty"`
	ActiveProfile string   `json:"activeProfile,omitempty"`
	checked       bool
}

func (s *authStatus) Headers() []string { return []string{"Setting", "Value"} }

func (s *authStatus) Rows() [][]string {
	rows := [][]string{
		{"provider", s.Provider},
		{"key store", s.KeyStore},
	}
	if s.ActiveProfile != "" {
		rows = append(rows, []string{"active profile", s.ActiveProfile})
	}
	if s.Email != "" {
		rows = append(rows, []string{"service account", s.Email})
	}
	for _, p := range s.Profiles {
		rows = append(rows, []string{"stored profile", p})
	}
	if s.checked {
		verified := "yes"
		if !s.Verified {
			verified = "no: " + truncate(s.VerifyError, 80)
		}
		rows = append(rows, []string{"verified", verified})
	}
	return rows
}

func (s *authStatus) EmptyMessage() string { return "No credentials configured" }

func keyStores() (auth.KeyStore, *auth.ProfileIndex, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, nil, err
	}
	store, err := auth.NewKeyStore(dir)
	if err != nil {
		return nil, nil, err
	}
	return store, auth.NewProfileIndex(dir), nil
}

func runAuthImportKey(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return out.WriteError("auth.import-key", utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("failed to read key file: %v", err)).Build())
	}
	key, err := auth.ParseServiceAccountKey(data)
	if err != nil {
		return out.WriteError("auth.import-key", utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build())
	}

	store, index, err := keyStores()
	if err != nil {
		return out.WriteErr("auth.import-key", err)
	}
	if err := store.Save(authProfile, data); err != nil {
		return out.WriteError("auth.import-key", utils.NewCLIError(utils.ErrCodeStateError,
			fmt.Sprintf("failed to store key: %v", err)).Build())
	}
	if err := index.Add(authProfile); err != nil {
		return out.WriteError("auth.import-key", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
	}

	if authSetDefault {
		cfg, err := loadConfig()
		if err != nil {
			return out.WriteErr("auth.import-key", err)
		}
		cfg.KeyringProfile = authProfile
		if err := cfg.Save(); err != nil {
			return out.WriteError("auth.import-key", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
		}
	}

	logger.Info("Stored service account key", logging.F("profile", authProfile), logging.F("store", store.Name()))
	out.Log("Stored key for %s as profile %q in %s", key.ClientEmail, authProfile, store.Name())
	return out.WriteSuccess("auth.import-key", map[string]string{
		"profile":             authProfile,
		"serviceAccountEmail": key.ClientEmail,
		"keyStore":            store.Name(),
	})
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	profile := args[0]

	store, index, err := keyStores()
	if err != nil {
		return out.WriteErr("auth.remove", err)
	}
	if err := store.Delete(profile); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return out.WriteError("auth.remove", utils.NewCLIError(utils.ErrCodeFileNotFound,
				fmt.Sprintf("no key stored for profile %q", profile)).Build())
		}
		return out.WriteError("auth.remove", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
	}
	if err := index.Remove(profile); err != nil {
		return out.WriteError("auth.remove", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
	}

	out.Log("Removed profile %q", profile)
	return out.WriteSuccess("auth.remove", map[string]string{"profile": profile, "status": "removed"})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := loadConfig()
	if err != nil {
		return out.WriteErr("auth.status", err)
	}
	store, index, err := keyStores()
	if err != nil {
		return out.WriteErr("auth.status", err)
	}
	profiles, err := index.List()
	if err != nil {
		return out.WriteError("auth.status", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
	}

	provider := backend.Provider(cfg, store)
	status := &authStatus{
		Provider:      provider.Name(),
		KeyStore:      store.Name(),
		Profiles:      profiles,
		ActiveProfile: cfg.KeyringProfile,
	}

	if authVerify {
		status.checked = true
		if _, err := auth.HTTPClient(commandContext(cmd), provider, nil, utils.ScopeDriveReadonly, utils.ScopeStorageReadonly); err != nil {
			status.VerifyError = utils.AsCLIError(err).Message
		} else {
			status.Verified = true
		}
	}
	if id, ok := provider.(auth.Identity); ok {
		status.Email = id.ServiceAccountEmail()
	}

	return out.WriteSuccess("auth.status", status)
}
