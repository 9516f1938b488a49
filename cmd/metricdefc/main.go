// Command metricdefc is a thin demonstration front-end for the compiler:
// it reads a project file and a request file from disk, compiles the
// request, and prints the resulting SQL. It is not the REPL/CLI
// ergonomics layer the project's specification excludes — there is no
// interactive mode, no schema introspection, nothing beyond "compile
// this one request and print the SQL".
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/metricdef/metricdef/connection"
	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
	"github.com/metricdef/metricdef/resolver"
)

type options struct {
	Project   string `short:"p" long:"project" description:"Path to the project JSON file" value-name:"path" required:"true"`
	Request   string `short:"r" long:"request" description:"Path to the request JSON or YAML file" value-name:"path" required:"true"`
	Config    string `short:"c" long:"config" description:"Path to a YAML config file with connection defaults" value-name:"path"`
	Env       string `long:"env" description:"Path to a .env file to load before reading config" value-name:"path" default:".env"`
	Debug     bool   `long:"debug" description:"Pretty-print the compiled request and connection before the SQL"`
	Help      bool   `long:"help" description:"Show this help"`
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if err := godotenv.Load(opts.Env); err != nil {
		log.Printf("no .env file loaded from %q: %v", opts.Env, err)
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		log.Fatal(err)
	}

	project, err := loadProject(opts.Project)
	if err != nil {
		log.Fatal(err)
	}

	raw, err := loadRequest(opts.Request)
	if err != nil {
		log.Fatal(err)
	}

	registry := connection.NewRegistry()
	for name, conn := range cfg.Connections {
		dlct, ok := dialect.Parse(conn.Dialect)
		if !ok {
			log.Fatalf("connection %q declares unknown dialect %q", name, conn.Dialect)
		}
		dsn := resolveDSN(conn, name)
		registry.Register(name, dlct, dsn)
	}

	if opts.Debug {
		parsed, err := resolver.ParseRequest(raw)
		if err == nil {
			pp.Println(parsed)
		}
	}

	result, err := resolver.Compile(project, registry, raw)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Debug && result.Connection != nil {
		pp.Println(result.Connection)
	}

	fmt.Println(result.SQL)
}

func parseOptions(args []string) (*options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "--project project.json --request request.json [options]"
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	return &opts, nil
}

// connectionDefaults is the shape a --config YAML file's "connections"
// map takes: one entry per name declared by a view's `connection` field,
// giving the dialect and DSN pieces the registry needs to open it.
type connectionDefaults struct {
	Dialect  string `mapstructure:"dialect"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type cliConfig struct {
	Connections map[string]connectionDefaults
}

// loadConfig reads connection defaults from a YAML file via viper, the
// way the pack's service configs layer a config file under environment
// variables. The file is entirely optional: a project with no
// registered connections (SQL-only callers) runs fine without one.
func loadConfig(path string) (*cliConfig, error) {
	cfg := &cliConfig{Connections: map[string]connectionDefaults{}}
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := v.UnmarshalKey("connections", &cfg.Connections); err != nil {
		return nil, fmt.Errorf("parsing connections in %q: %w", path, err)
	}
	return cfg, nil
}

// resolveDSN prefers an explicit dsn entry, falling back to assembling
// one from the discrete host/port/user/database fields. When the password
// is empty and stdin is a terminal, it is prompted for; otherwise the DSN
// is assembled with an empty password.
func resolveDSN(conn connectionDefaults, name string) string {
	if conn.DSN != "" {
		return conn.DSN
	}
	password := conn.Password
	if password == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprintf(os.Stderr, "Password for connection %q: ", name)
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err == nil {
			password = string(pass)
		}
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		conn.Host, conn.Port, conn.User, password, conn.Database)
}

func loadProject(path string) (*model.Project, error) {
	dict, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project %q: %w", path, err)
	}
	return model.FromDict(dict)
}

func loadRequest(path string) (*resolver.RawRequest, error) {
	dict, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request %q: %w", path, err)
	}
	raw := &resolver.RawRequest{
		Metrics:      stringSliceOf(dict["metrics"]),
		Dimensions:   stringSliceOf(dict["dimensions"]),
		Where:        dict["where"],
		Having:       dict["having"],
		OrderBy:      dict["order_by"],
		QueryType:    stringOf(dict["query_type"]),
		SelectRawSQL: stringSliceOf(dict["select_raw_sql"]),
		NoSemicolon:  boolOf(dict["no_semicolon"]),
		ForceGroupBy: boolOf(dict["force_group_by"]),
	}
	if limit, ok := dict["limit"].(float64); ok {
		n := int(limit)
		raw.Limit = &n
	}
	return raw, nil
}

// decodeFile accepts either JSON or YAML, keyed off the file extension,
// since a hand-authored request file is often more convenient to write
// as YAML while a generated project file is usually JSON.
func decodeFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dict := map[string]any{}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &dict); err != nil {
			return nil, err
		}
		return normalizeYAMLMaps(dict), nil
	}
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, err
	}
	return dict, nil
}

// normalizeYAMLMaps rewrites the map[string]any/[]any tree yaml.v3
// produces (which nests map[string]interface{} directly, matching JSON's
// shape already) so FromDict's type assertions, written against
// encoding/json's decoded shape, also see nested filter/order objects
// correctly when a request came from YAML instead of JSON.
func normalizeYAMLMaps(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = normalizeYAMLValue(val)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeYAMLMaps(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	default:
		return v
	}
}

func stringSliceOf(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}
