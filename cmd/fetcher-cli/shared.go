package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v2"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetch"
	"github.com/neptune-ai/fetcher-go/pkg/frame"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
	"github.com/neptune-ai/fetcher-go/pkg/util/log"
)

type globalOptions struct {
	Project    string `short:"p" help:"Project, as workspace/project. Defaults to NEPTUNE_PROJECT."`
	APIToken   string `help:"API token. Defaults to NEPTUNE_API_TOKEN."`
	ConfigFile string `type:"path" help:"YAML file overlaying the NEPTUNE_* environment."`
	LogLevel   string `default:"error" enum:"debug,info,warn,error" help:"Log verbosity."`
}

// newFetchClient builds the client with the usual precedence: defaults, then
// environment, then config file, then flags.
func (g *globalOptions) newFetchClient() (*fetch.Client, error) {
	logger, err := log.InitLogger("logfmt", g.LogLevel)
	if err != nil {
		return nil, err
	}

	cfg, err := fetch.FromEnv()
	if err != nil {
		return nil, err
	}
	if g.ConfigFile != "" {
		buff, err := os.ReadFile(g.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read configFile %s: %w", g.ConfigFile, err)
		}
		if err := yaml.UnmarshalStrict(buff, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configFile %s: %w", g.ConfigFile, err)
		}
	}
	if g.APIToken != "" {
		cfg.APIToken = g.APIToken
	}

	return fetch.NewClient(cfg, g.Project, logger)
}

// domainFlags narrow the run domain by the container's label attribute:
// experiment name for experiments, custom run id for runs.
type domainFlags struct {
	Names []string `help:"Exact labels to match, comma separated."`
	Match string   `help:"Regex the label must match."`
}

func (d domainFlags) filter(container attribute.ContainerType) nql.Filter {
	attr := nql.TypedAttr(container.LabelAttribute(), attribute.TypeString)

	var parts []nql.Filter
	if len(d.Names) > 0 {
		alts := make([]nql.Filter, 0, len(d.Names))
		for _, name := range d.Names {
			alts = append(alts, nql.Eq(attr, name))
		}
		parts = append(parts, nql.Any(alts...))
	}
	if d.Match != "" {
		parts = append(parts, nql.MatchesAll(attr, d.Match))
	}

	if len(parts) == 0 {
		return nil
	}
	return nql.All(parts...)
}

// selectorFlags narrow which attributes a command touches.
type selectorFlags struct {
	Attributes []string `help:"Regexes attribute names must all match."`
	Types      []string `help:"Attribute types to keep, e.g. float,string,float_series."`
}

func (s selectorFlags) selector() (nql.AttributeSelector, error) {
	if len(s.Attributes) == 0 && len(s.Types) == 0 {
		return nil, nil
	}
	leaf := &nql.AttributeFilter{NameMatchesAll: s.Attributes}
	for _, raw := range s.Types {
		t, err := attribute.ParseType(raw)
		if err != nil {
			return nil, err
		}
		leaf.TypeIn = append(leaf.TypeIn, t)
	}
	return leaf, nil
}

// limitPtr maps the flag convention (0 = no limit) onto the API's optional
// limit.
func limitPtr(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// stepPtr maps the flag convention (negative = unbounded) onto the API's
// optional step bound.
func stepPtr(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

func renderTable(header []string, rows [][]string, footer []string) {
	fmt.Println()
	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader(header)
	if footer != nil {
		w.SetFooter(footer)
	}
	w.AppendBulk(rows)
	w.Render()
}

func columnHeader(col frame.Column) string {
	if col.Sub == "" {
		return col.Name
	}
	return col.Name + " (" + col.Sub + ")"
}

func formatStep(step float64) string {
	return strconv.FormatFloat(step, 'g', -1, 64)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	case []string:
		return strings.Join(x, ",")
	case attribute.File:
		return x.Path
	case *attribute.File:
		return x.Path
	case *attribute.Histogram:
		return fmt.Sprintf("histogram[%d]", len(x.Values))
	default:
		return fmt.Sprintf("%v", x)
	}
}
