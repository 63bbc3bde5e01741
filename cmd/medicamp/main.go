package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RahatInCode/medicamp-public/internal/app"
	"github.com/RahatInCode/medicamp-public/internal/config"
	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
)

var rootCmd = &cobra.Command{
	Use:   "medicamp",
	Short: "Medical camp registration service",
	Long: `Medicamp runs the participant lifecycle of medical camps.
- Camps: organizers publish camps with a fee, schedule and location.
- Registrations: a participant holds at most one active registration per camp.
- Payments: a checkout session is opened with the gateway; its success callback marks the registration paid exactly once.
- Confirmation: organizers confirm registrations independently of payment.
- Feedback: paid participants rate their visit once; organizers approve feedback before it is public.
- Event log: every committed change, view with 'medicamp log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MEDICAMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory holding medicamp.yml")
	flags.String("config", "", "config file (overrides workspace lookup)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "acting user id")
	flags.String("actor-role", "participant", "acting user role (participant|organizer)")
	flags.String("actor-email", "", "acting user email")
	flags.String("actor-name", "", "acting user display name")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "actor-role", "actor-email", "actor-name"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(campCmd())
	rootCmd.AddCommand(registrationCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default medicamp.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(workspace)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			shown := *c
			shown.Auth.JWTSecret = redact(shown.Auth.JWTSecret)
			shown.Gateway.SecretKey = redact(shown.Gateway.SecretKey)
			shown.Gateway.CallbackSecret = redact(shown.Gateway.CallbackSecret)
			if viper.GetBool("json") {
				return printJSON(shown)
			}
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			enc.SetIndent(2)
			return enc.Encode(shown)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate medicamp.yml and MEDICAMP_* overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.Load(viper.GetString("workspace"))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(cfg, app.Options{SkipNATS: true})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func actor() auth.Identity {
	return auth.Identity{
		ID:    viper.GetString("actor-id"),
		Email: viper.GetString("actor-email"),
		Name:  viper.GetString("actor-name"),
		Role:  auth.ParseRole(viper.GetString("actor-role")),
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printRegistrations(regs []domain.Registration) error {
	if viper.GetBool("json") {
		return printJSON(regs)
	}
	tw := newTable(table.Row{"ID", "Camp", "Participant", "State", "Payment", "Confirmation"})
	for _, r := range regs {
		tw.AppendRow(table.Row{r.ID, r.CampName, r.Name, r.State(), r.PaymentStatus, r.ConfirmationStatus})
	}
	tw.Render()
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func formatMoney(amount int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}
