package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type wizardConfig struct {
	FeeBps          int64                        `yaml:"fee_bps"`
	Accounts        map[string]map[string]string `yaml:"accounts"`
	BlockForks      bool                         `yaml:"block_forks"`
	ForkFeedURL     string                       `yaml:"fork_feed_url,omitempty"`
	MinTVL          string                       `yaml:"min_tvl,omitempty"`
	RefreshInterval time.Duration                `yaml:"refresh_interval,omitempty"`
	WebAddr         string                       `yaml:"web_addr,omitempty"`
}

// RunTUI launches the terminal configuration wizard and writes
// config.gen.yaml on confirmation.
func RunTUI() error {
	var (
		pair      string
		feeBpsStr string
		seedStr   string
		riskMode  string
		useFeed   bool
		webAddr   string
		confirm   bool
	)

	// defaults
	feeBpsStr = "30"
	seedStr = "10000"
	webAddr = ":8080"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("DEXSIM CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your exchange sandbox.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MARKET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Token Pair").
				Description("Must contain underscore (e.g. ETH_USDC)").
				Value(&pair).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("pair cannot be empty")
					}
					if !strings.Contains(s, "_") {
						return fmt.Errorf("invalid format: must be TOKEN0_TOKEN1 (e.g. ETH_USDC)")
					}
					return nil
				}),
			huh.NewInput().
				Title("Swap Fee (bps)").
				Description("Basis points taken from every swap input (e.g. 30 = 0.3%)").
				Value(&feeBpsStr).
				Validate(validateFeeBps),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSIM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: ACCOUNTS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting Balance").
				Description("Per-token seed balance for alice and bob").
				Value(&seedStr).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSIM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: RISK POLICY"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Fork handling").
				Options(
					huh.NewOption("Block trades against known forks", "block"),
					huh.NewOption("Allow everything (research mode)", "allow"),
				).
				Value(&riskMode),
			huh.NewConfirm().
				Title("Pull fork table from DeFiLlama?").
				Value(&useFeed),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSIM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: REPORTING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Web Listen Address").
				Description("SSE trade stream address, empty to disable").
				Value(&webAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSIM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Pair: %s\nFee: %s bps\nSeed balance: %s\nRisk: %s\nFork feed: %v\nWeb: %s\n",
		pair, feeBpsStr, seedStr, riskMode, useFeed, webAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	feeBps, _ := strconv.ParseInt(feeBpsStr, 10, 64)
	tokens := strings.SplitN(pair, "_", 2)
	balances := map[string]string{tokens[0]: seedStr, tokens[1]: seedStr}

	cfg := wizardConfig{
		FeeBps: feeBps,
		Accounts: map[string]map[string]string{
			"alice": balances,
			"bob":   balances,
		},
		BlockForks: riskMode == "block",
		WebAddr:    webAddr,
	}
	if useFeed {
		cfg.MinTVL = "1000000"
		cfg.RefreshInterval = time.Hour
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting simulator...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateFeeBps(s string) error {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if v < 0 || v >= 10000 {
		return fmt.Errorf("must be in [0, 10000)")
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}
