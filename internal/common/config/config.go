package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

type MQ struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
}

// Terminal configures the POS terminal side: where the order service
// lives, how often to probe it, and which embedded store backs the
// offline queue.
type Terminal struct {
	ServerURL     string `yaml:"server_url"`
	StaffID       string `yaml:"staff_id"`
	DataDir       string `yaml:"data_dir"`
	Storage       string `yaml:"storage"` // pebble | sqlite | memory
	ProbeSeconds  int    `yaml:"probe_interval_seconds"`
	SubmitSeconds int    `yaml:"submit_timeout_seconds"`
}

type Loyalty struct {
	PointsPerUnit float64 `yaml:"points_per_unit"`
	RedeemRate    int     `yaml:"redeem_rate"`
}

type App struct {
	Database DB       `yaml:"database"`
	Rabbit   MQ       `yaml:"rabbitmq"`
	Terminal Terminal `yaml:"terminal"`
	Loyalty  Loyalty  `yaml:"loyalty"`
}

// Load reads a two-level YAML file without external packages (section
// header lines ending in ":", then key: value pairs).
func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	a := defaults()
	var cur string
	for _, ln := range strings.Split(string(b), "\n") {
		line := strings.TrimSpace(ln)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") {
			cur = strings.TrimSuffix(line, ":")
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		k := strings.TrimSpace(parts[0])
		v := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		switch cur {
		case "database":
			assignDB(&a.Database, k, v)
		case "rabbitmq":
			assignMQ(&a.Rabbit, k, v)
		case "terminal":
			assignTerminal(&a.Terminal, k, v)
		case "loyalty":
			assignLoyalty(&a.Loyalty, k, v)
		}
	}
	if a.Loyalty.RedeemRate <= 0 {
		return App{}, errors.New("invalid config: redeem_rate must be positive")
	}
	return a, nil
}

func defaults() App {
	return App{
		Terminal: Terminal{
			ServerURL:     "http://localhost:3000",
			DataDir:       "./data",
			Storage:       "pebble",
			ProbeSeconds:  15,
			SubmitSeconds: 10,
		},
		// 1 point per currency unit spent, 100 points per unit of discount.
		Loyalty: Loyalty{PointsPerUnit: 1, RedeemRate: 100},
	}
}

func assignDB(d *DB, k, v string) {
	switch k {
	case "host":
		d.Host = v
	case "port":
		d.Port = atoiSafe(v)
	case "user":
		d.User = v
	case "password":
		d.Pass = v
	case "database":
		d.Name = v
	}
}

func assignMQ(m *MQ, k, v string) {
	switch k {
	case "host":
		m.Host = v
	case "port":
		m.Port = atoiSafe(v)
	case "user":
		m.User = v
	case "password":
		m.Pass = v
	}
}

func assignTerminal(t *Terminal, k, v string) {
	switch k {
	case "server_url":
		t.ServerURL = v
	case "staff_id":
		t.StaffID = v
	case "data_dir":
		t.DataDir = v
	case "storage":
		t.Storage = v
	case "probe_interval_seconds":
		t.ProbeSeconds = atoiSafe(v)
	case "submit_timeout_seconds":
		t.SubmitSeconds = atoiSafe(v)
	}
}

func assignLoyalty(l *Loyalty, k, v string) {
	switch k {
	case "points_per_unit":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			l.PointsPerUnit = f
		}
	case "redeem_rate":
		l.RedeemRate = atoiSafe(v)
	}
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
