package main

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fushumaDex/internal/v3math"
)

type tickReport struct {
	Tick         int          `json:"tick"`
	SqrtPriceX96 string       `json:"sqrt_price_x96"`
	Price        string       `json:"price"`
	Decimals0    uint8        `json:"decimals0"`
	Decimals1    uint8        `json:"decimals1"`
	UsableTicks  []usableTick `json:"usable_ticks"`
}

type usableTick struct {
	Fee         uint32 `json:"fee"`
	TickSpacing int    `json:"tick_spacing"`
	Tick        int    `json:"tick"`
}

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Convert between tick, sqrt price and human price",
		RunE:  runTick,
	}

	cmd.Flags().Int("tick", 0, "tick index")
	cmd.Flags().String("sqrt-price", "", "Q64.96 sqrt price")
	cmd.Flags().String("price", "", "token1 per token0 price, decimal-adjusted")
	cmd.Flags().Uint8("decimals0", 18, "token0 decimals")
	cmd.Flags().Uint8("decimals1", 18, "token1 decimals")
	return cmd
}

func runTick(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	dec0, _ := flags.GetUint8("decimals0")
	dec1, _ := flags.GetUint8("decimals1")

	inputs := 0
	for _, name := range []string{"tick", "sqrt-price", "price"} {
		if flags.Changed(name) {
			inputs++
		}
	}
	if inputs != 1 {
		return fmt.Errorf("exactly one of --tick, --sqrt-price or --price is required")
	}

	var tick int
	switch {
	case flags.Changed("tick"):
		tick, _ = flags.GetInt("tick")
	case flags.Changed("sqrt-price"):
		raw, _ := flags.GetString("sqrt-price")
		sqrtPrice, err := parseBigInt("sqrt-price", raw)
		if err != nil {
			return err
		}
		if tick, err = v3math.TickAtSqrtPrice(sqrtPrice); err != nil {
			return err
		}
	default:
		raw, _ := flags.GetString("price")
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid --price %q: %w", raw, err)
		}
		if tick, err = v3math.PriceToTick(price, dec0, dec1); err != nil {
			return err
		}
	}

	report, err := buildTickReport(tick, dec0, dec1)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}

func buildTickReport(tick int, dec0, dec1 uint8) (tickReport, error) {
	sqrtPrice, err := v3math.SqrtPriceAtTick(tick)
	if err != nil {
		return tickReport{}, err
	}
	price, err := v3math.SqrtPriceToPrice(sqrtPrice, dec0, dec1)
	if err != nil {
		return tickReport{}, err
	}

	fees := make([]v3math.FeeTier, 0, len(v3math.TickSpacings))
	for fee := range v3math.TickSpacings {
		fees = append(fees, fee)
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })

	usable := make([]usableTick, 0, len(fees))
	for _, fee := range fees {
		spacing := v3math.TickSpacings[fee]
		nearest, err := v3math.NearestUsableTick(tick, spacing)
		if err != nil {
			return tickReport{}, err
		}
		usable = append(usable, usableTick{Fee: uint32(fee), TickSpacing: spacing, Tick: nearest})
	}

	return tickReport{
		Tick:         tick,
		SqrtPriceX96: sqrtPrice.String(),
		Price:        price.String(),
		Decimals0:    dec0,
		Decimals1:    dec1,
		UsableTicks:  usable,
	}, nil
}

func parseBigInt(name, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("invalid --%s %q", name, raw)
	}
	return value, nil
}

func parseAmount(name, raw string) (*big.Int, error) {
	value, err := parseBigInt(name, raw)
	if err != nil {
		return nil, err
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("--%s must not be negative", name)
	}
	return value, nil
}
