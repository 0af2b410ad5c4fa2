package conf

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultQueueCapacity  = 256
	DefaultSubjectPrefix  = "pullsub"
	DefaultDeliverTimeout = 5 * time.Second
)

var (
	Path string
	Port int
)

func LoadEnv(cli *cli.Context) error {
	path := cli.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = homeDir + "/.pullsub"
	}

	Path = path
	Port = cli.Int("port")
	return nil
}

// LoadConfig reads config.yaml from Path, falling back to
// config.example.yaml, and to the built-in defaults when neither exists.
func LoadConfig() (*Config, error) {
	f, err := os.Open(Path + "/config.yaml")
	if err != nil {
		f, err = os.Open(Path + "/config.example.yaml")
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return DefaultConfig(), nil
			}
			return nil, err
		}
	}
	defer f.Close()

	r := NewEnvExpandedReader(f)

	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Name: "pullsub",
		Session: Session{
			QueueCapacity: DefaultQueueCapacity,
		},
		Transports: Transports{
			HTTP: RegisterHTTP{
				Internal: Instance{
					Scheme: "http",
					Host:   "localhost",
					Port:   Port,
				},
			},
			Link: Link{
				Provider:       InProc,
				Prefix:         DefaultSubjectPrefix,
				DeliverTimeout: DefaultDeliverTimeout,
			},
		},
		Storage: Storage{
			Persistence: Persistence{
				Driver: InMem,
				Name:   "samples",
				Host:   Path,
			},
		},
	}
}

type Config struct {
	Name       string     `yaml:"name"`
	Session    Session    `yaml:"session"`
	Transports Transports `yaml:"transports"`
	Storage    Storage    `yaml:"storage"`
}

type Session struct {
	QueueCapacity int
	// Reliable puts give up on a full queue after BlockTimeout; zero waits
	// for the caller's context only.
	BlockTimeout time.Duration
}

func (s *Session) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		QueueCapacity int    `yaml:"queueCapacity"`
		BlockTimeout  string `yaml:"blockTimeout"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	s.QueueCapacity = raw.QueueCapacity
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = DefaultQueueCapacity
	}

	s.BlockTimeout = 0
	if raw.BlockTimeout != "" {
		timeout, err := time.ParseDuration(raw.BlockTimeout)
		if err != nil {
			return err
		}

		s.BlockTimeout = timeout
	}

	return nil
}

type Transports struct {
	HTTP RegisterHTTP `yaml:"http"`
	Link Link         `yaml:"link"`
}

type RegisterHTTP struct {
	Enabled  bool
	Internal Instance
}

func (r *RegisterHTTP) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled  bool     `yaml:"enabled"`
		Internal Instance `yaml:"internal"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	r.Enabled = raw.Enabled
	r.Internal = raw.Internal

	// default
	if r.Internal.Scheme == "" {
		r.Internal.Scheme = "http"
	}

	if r.Internal.Host == "" {
		r.Internal.Host = "localhost"
	}

	if r.Internal.Port == 0 {
		r.Internal.Port = Port
	}

	return nil
}

type Instance struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

func (i *Instance) URL() string {
	return i.Scheme + "://" + i.Host + ":" + strconv.Itoa(i.Port)
}

func (i *Instance) Addr() string {
	return i.Host + ":" + strconv.Itoa(i.Port)
}

type TransportProvider int

const (
	NATS TransportProvider = iota
	InProc
)

func ParseTransportProvider(provider string) (TransportProvider, error) {
	switch provider {
	case "nats":
		return NATS, nil
	case "inproc":
		return InProc, nil
	default:
		return -1, errors.New("provider not supported")
	}
}

func (p TransportProvider) String() string {
	switch p {
	case NATS:
		return "nats"
	case InProc:
		return "inproc"
	default:
		return ""
	}
}

// Link is the connection to remote peers.
type Link struct {
	Enabled  bool
	Provider TransportProvider
	Connect  []string
	Prefix   string
	// DeliverTimeout bounds the delivery of one received sample, so a full
	// reliable queue cannot stall the link; zero waits indefinitely.
	DeliverTimeout time.Duration
}

func (l *Link) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled  bool     `yaml:"enabled"`
		Provider string   `yaml:"provider"`
		Connect  []string `yaml:"connect"`
		Prefix   string   `yaml:"prefix"`

		DeliverTimeout string `yaml:"deliverTimeout"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	l.Enabled = raw.Enabled

	l.Provider = InProc
	if raw.Provider != "" {
		provider, err := ParseTransportProvider(raw.Provider)
		if err != nil {
			return err
		}

		l.Provider = provider
	}

	l.Connect = raw.Connect

	l.Prefix = strings.Trim(raw.Prefix, ".")
	if l.Prefix == "" {
		l.Prefix = DefaultSubjectPrefix
	}

	l.DeliverTimeout = DefaultDeliverTimeout
	if raw.DeliverTimeout != "" {
		timeout, err := time.ParseDuration(raw.DeliverTimeout)
		if err != nil {
			return err
		}

		l.DeliverTimeout = timeout
	}

	return nil
}

type PersistenceDriver int

const (
	SQLite PersistenceDriver = iota
	BadgerDB
	InMem
)

func ParsePersistenceDriver(driver string) (PersistenceDriver, error) {
	switch driver {
	case "sqlite":
		return SQLite, nil
	case "badger":
		return BadgerDB, nil
	case "inmem":
		return InMem, nil
	default:
		return -1, errors.New("driver not supported")
	}
}

func (driver PersistenceDriver) String() string {
	switch driver {
	case SQLite:
		return "sqlite"
	case BadgerDB:
		return "badger"
	case InMem:
		return "inmem"
	default:
		return "unknown"
	}
}

// Storage declares a latest-value store subscribed on KeyExpr.
type Storage struct {
	Enabled     bool        `yaml:"enabled"`
	KeyExpr     string      `yaml:"keyExpr"`
	Persistence Persistence `yaml:"persistence"`
}

type Persistence struct {
	Driver PersistenceDriver
	Name   string
	Host   string
	InMem  bool
}

func (p *Persistence) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Driver string `yaml:"driver"`
		Name   string `yaml:"name"`
		Host   string `yaml:"host"`
		InMem  bool   `yaml:"inmem"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	p.Driver = InMem
	if raw.Driver != "" {
		driver, err := ParsePersistenceDriver(raw.Driver)
		if err != nil {
			return err
		}

		p.Driver = driver
	}

	p.Name = raw.Name
	if p.Name == "" {
		p.Name = "samples"
	}

	p.Host = raw.Host
	if raw.Host == "" {
		p.Host = Path
	}

	p.InMem = raw.InMem

	return nil
}
