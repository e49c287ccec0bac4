package types

type OutputStyle int

const (
	StyleHuman OutputStyle = iota
	StyleHumanVerbose
	StyleMachineJSON
)

// RunConfig is the resolved configuration for one toolparam session.
type RunConfig struct {
	DryRun bool `yaml:"dryrun" toml:"dryrun" json:"dryrun"`

	Jobs   Jobs   `yaml:"jobs" toml:"jobs" json:"jobs"`
	Output Output `yaml:"output" toml:"output" json:"output"`
	Input  Input  `yaml:"input,omitempty" toml:"input,omitempty" json:"input"`

	Extra          []AuxFile     `yaml:"extra,omitempty" toml:"extra,omitempty" json:"extra,omitempty"`
	Modules        []Module      `yaml:"modules,omitempty" toml:"modules,omitempty" json:"modules,omitempty"`
	CmdPlaceholder []Placeholder `yaml:"cmd_placeholder,omitempty" toml:"cmd_placeholder,omitempty" json:"cmd_placeholder,omitempty"`

	Scheduler   Scheduler   `yaml:"scheduler,omitempty" toml:"scheduler,omitempty" json:"scheduler"`
	ObjectStore ObjectStore `yaml:"objectstore,omitempty" toml:"objectstore,omitempty" json:"objectstore"`
	History     History     `yaml:"history,omitempty" toml:"history,omitempty" json:"history"`
}

type Output struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// Input describes where run inputs are sampled from. Path is a glob, either
// local ("/data/*.raw") or object-store ("s3://bucket/prefix/*.raw").
// Ext is a glob evaluated inside each run directory to list staged inputs.
type Input struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	Ext  string `yaml:"ext,omitempty" toml:"ext,omitempty" json:"ext,omitempty"`
	Seed int64  `yaml:"seed,omitempty" toml:"seed,omitempty" json:"seed,omitempty"`
}

// AuxFile is an auxiliary file copied into every run directory (fasta, xml, tsv...).
type AuxFile struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	Path string `yaml:"path" toml:"path" json:"path"`
}

type Module struct {
	Use  string `yaml:"use,omitempty" toml:"use,omitempty" json:"use,omitempty"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
}

// Placeholder is an extra name/value pair substituted into generic command templates.
type Placeholder struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	Path string `yaml:"path" toml:"path" json:"path"`
}

type Scheduler struct {
	Command   string   `yaml:"command,omitempty" toml:"command,omitempty" json:"command,omitempty"`
	ExtraArgs []string `yaml:"extra_args,omitempty" toml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

type ObjectStore struct {
	Endpoint  string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty" toml:"access_key,omitempty" json:"-"`
	SecretKey string `yaml:"secret_key,omitempty" toml:"secret_key,omitempty" json:"-"`
	UseSSL    bool   `yaml:"use_ssl,omitempty" toml:"use_ssl,omitempty" json:"use_ssl,omitempty"`
	Region    string `yaml:"region,omitempty" toml:"region,omitempty" json:"region,omitempty"`
}

type History struct {
	Path     string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty" toml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Aux returns the path of the auxiliary file declared with name, if any.
func (c *RunConfig) Aux(name string) (string, bool) {
	for _, f := range c.Extra {
		if f.Name == name {
			return f.Path, true
		}
	}
	return "", false
}

// HasInput reports whether an input source is configured for staging.
func (c *RunConfig) HasInput() bool {
	return c.Input.Path != ""
}
