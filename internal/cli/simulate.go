package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockwatch/internal/app"
)

var (
	simulateTicker    string
	simulatePrice     float64
	simulateThreshold float64
	simulateRecipient string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate one synthetic price against the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateTicker == "" {
			return errors.New("--ticker is required")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than zero")
		}

		opts := app.SimulateOptions{
			Ticker:    simulateTicker,
			Price:     decimal.NewFromFloat(simulatePrice),
			Threshold: decimal.NewFromFloat(simulateThreshold),
			Recipient: simulateRecipient,
		}
		opts = getApp().ResolveSimulateRule(opts)

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTicker, "ticker", "", "Ticker symbol to evaluate")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Synthetic current price")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 0, "Threshold override (defaults to configured rule)")
	simulateCmd.Flags().StringVar(&simulateRecipient, "recipient", "", "Recipient override (defaults to configured rule)")
}
