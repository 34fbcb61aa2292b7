package source

import (
	"fmt"
	"time"

	"github.com/oussamaboulmali/newswire/app/agency"
)

// New builds the source described by an agency's source block.
func New(cfg agency.SourceConfig) (Source, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	switch cfg.Kind {
	case agency.SourceLocal:
		return NewLocalSource(cfg.Path), nil
	case agency.SourceFTP:
		return NewFTPSource(FTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Path:     cfg.Path,
			Timeout:  timeout,
		}), nil
	case agency.SourceSFTP:
		return NewSFTPSource(SFTPConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Path:       cfg.Path,
			KnownHosts: cfg.KnownHosts,
			Timeout:    timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source kind %q", cfg.Kind)
	}
}
