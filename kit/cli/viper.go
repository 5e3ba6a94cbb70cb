package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Default interface{}
	Desc    string
}

// NewOpt creates a new command line option.
func NewOpt(destP interface{}, flag string, dflt interface{}, desc string) Opt {
	return Opt{
		DestP:   destP,
		Flag:    flag,
		Default: dflt,
		Desc:    desc,
	}
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func(args []string) error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// EnvPrefix overrides the env var prefix, for subcommands sharing the
	// prefix of their parent.
	EnvPrefix string
	// Short is the one line description shown in help output.
	Short string
	// Args validates positional arguments. Defaults to cobra.NoArgs.
	Args cobra.PositionalArgs
	// Opts are the command line/env var options to the program
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env vars.
//
// Uses the upper-case version of the program's name, or of EnvPrefix when
// set, as a prefix to all environment variables.
//
// This is to simplify the viper/cobra boilerplate.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	args := p.Args
	if args == nil {
		args = cobra.NoArgs
	}
	cmd := &cobra.Command{
		Use:   p.Name,
		Short: p.Short,
		Args:  args,
		RunE: func(_ *cobra.Command, args []string) error {
			return p.Run(args)
		},
	}

	prefix := p.EnvPrefix
	if prefix == "" {
		prefix = p.Name
	}
	v.SetEnvPrefix(strings.ToUpper(prefix))
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

// BindOptions adds opts to the specified command and automatically
// registers those options with viper.
//
// Values are resolved from viper before the command runs, so environment
// variables override defaults and flags override both.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	for _, o := range opts {
		flags := cmd.Flags()
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			flags.StringVar(destP, o.Flag, d, o.Desc)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			flags.IntVar(destP, o.Flag, d, o.Desc)
		case *int64:
			var d int64
			if o.Default != nil {
				d = toInt64(o.Default)
			}
			flags.Int64Var(destP, o.Flag, d, o.Desc)
		case *uint64:
			var d uint64
			if o.Default != nil {
				d = uint64(toInt64(o.Default))
			}
			flags.Uint64Var(destP, o.Flag, d, o.Desc)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			flags.BoolVar(destP, o.Flag, d, o.Desc)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			flags.DurationVar(destP, o.Flag, d, o.Desc)
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			flags.StringSliceVar(destP, o.Flag, d, o.Desc)
		case *zapcore.Level:
			d := zapcore.InfoLevel
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			flags.Var(newLevelValue(d, destP), o.Flag, o.Desc)
		default:
			return fmt.Errorf("unknown destination type %T for flag %q", o.DestP, o.Flag)
		}
		if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
			return err
		}
	}

	prev := cmd.PreRunE
	cmd.PreRunE = func(c *cobra.Command, args []string) error {
		if err := resolve(v, opts); err != nil {
			return err
		}
		if prev != nil {
			return prev(c, args)
		}
		return nil
	}
	return nil
}

// resolve copies the viper view of every option into its destination.
func resolve(v *viper.Viper, opts []Opt) error {
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			*destP = v.GetString(o.Flag)
		case *int:
			*destP = v.GetInt(o.Flag)
		case *int64:
			*destP = v.GetInt64(o.Flag)
		case *uint64:
			*destP = uint64(v.GetInt64(o.Flag))
		case *bool:
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			*destP = v.GetDuration(o.Flag)
		case *[]string:
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			if err := destP.Set(v.GetString(o.Flag)); err != nil {
				return fmt.Errorf("flag %q: %v", o.Flag, err)
			}
		}
	}
	return nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		panic(fmt.Errorf("unsupported integer default %T", v))
	}
}

type levelValue zapcore.Level

func newLevelValue(val zapcore.Level, p *zapcore.Level) *levelValue {
	*p = val
	return (*levelValue)(p)
}

func (l *levelValue) String() string {
	return zapcore.Level(*l).String()
}

func (l *levelValue) Set(s string) error {
	var level zapcore.Level
	if err := level.Set(s); err != nil {
		return fmt.Errorf("unknown log level; supported levels are debug, info, warn, error")
	}
	*l = levelValue(level)
	return nil
}

func (l *levelValue) Type() string {
	return "Log-Level"
}

var _ pflag.Value = (*levelValue)(nil)
