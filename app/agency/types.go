package agency

const (
	SourceLocal = "local"
	SourceFTP   = "ftp"
	SourceSFTP  = "sftp"
)

type Config struct {
	Name       string       // Derived from filename (without .yml extension)
	ID         int          `yaml:"id"`
	Format     string       `yaml:"format"`
	Enabled    bool         `yaml:"enabled"`
	Encoding   string       `yaml:"encoding"`   // forces a charset instead of detection
	Extensions []string     `yaml:"extensions"` // accepted suffixes, format default when empty
	Source     SourceConfig `yaml:"source"`
}

type SourceConfig struct {
	Kind        string `yaml:"kind"`
	Path        string `yaml:"path"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	KnownHosts  string `yaml:"known_hosts"` // sftp only, host key is not verified when empty
	Timeout     int    `yaml:"timeout"`     // seconds

	Password string `yaml:"-"` // resolved from PasswordEnv at load time
}
