package config

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"gopkg.in/ini.v1"
)

var ErrProfileNotFound = errors.New("profile not found")

// Registry resolves named credential profiles.
type Registry interface {
	GetProfiles(ctx context.Context) ([]domain.CredentialProfile, error)
	GetCredentials(ctx context.Context, profile string) (domain.Credentials, error)
	DefaultProfile() string
}

type cfgRegistry struct {
	profiles       map[string]domain.Credentials
	defaultProfile string
}

// NewRegistry loads profiles from an ini file where each section holds
// api_key and api_secret. An empty path skips the file. The fallback
// credentials, when set, fill the default profile if the file has none.
func NewRegistry(path string, defaultProfile string, fallback domain.Credentials) (Registry, error) {
	if defaultProfile == "" {
		defaultProfile = ini.DefaultSection
	}

	r := &cfgRegistry{
		profiles:       make(map[string]domain.Credentials),
		defaultProfile: defaultProfile,
	}

	if path != "" {
		cfg, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles from %s: %w", path, err)
		}
		for _, section := range cfg.Sections() {
			if !section.HasKey("api_key") {
				continue
			}
			r.profiles[section.Name()] = domain.Credentials{
				APIKey:    section.Key("api_key").String(),
				APISecret: section.Key("api_secret").String(),
			}
		}
	}

	if _, ok := r.profiles[defaultProfile]; !ok && fallback.APIKey != "" {
		r.profiles[defaultProfile] = fallback
	}
	return r, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]domain.CredentialProfile, error) {
	names := make([]string, 0, len(cr.profiles))
	for name := range cr.profiles {
		names = append(names, name)
	}
	slices.Sort(names)

	profiles := make([]domain.CredentialProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, domain.CredentialProfile{Name: name, Credentials: cr.profiles[name]})
	}
	return profiles, nil
}

// GetCredentials returns the credentials of profile; an empty name means the default profile.
func (cr *cfgRegistry) GetCredentials(_ context.Context, profile string) (domain.Credentials, error) {
	if profile == "" {
		profile = cr.defaultProfile
	}
	creds, ok := cr.profiles[profile]
	if !ok {
		return domain.Credentials{}, fmt.Errorf("%w: %s", ErrProfileNotFound, profile)
	}
	return creds, nil
}

func (cr *cfgRegistry) DefaultProfile() string {
	return cr.defaultProfile
}
