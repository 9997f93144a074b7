package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/stonkers/stonkers-bot/internal/exchange"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

// GetAccount returns available cash and total equity from the unified
// account wallet.
func (c *Client) GetAccount(ctx context.Context) (*exchange.Account, error) {
	var account *exchange.Account

	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(map[string]interface{}{
			"accountType": "UNIFIED",
		}).GetAccountWallet(ctx)
		if err != nil {
			return err
		}
		account, err = parseAccount(result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetOpenPositions returns the broker's open positions, normalized to pair
// format.
func (c *Client) GetOpenPositions(ctx context.Context) ([]exchange.BrokerPosition, error) {
	var positions []exchange.BrokerPosition

	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(map[string]interface{}{
			"category":   c.category,
			"settleCoin": "USDT",
		}).GetPositionList(ctx)
		if err != nil {
			return err
		}
		positions, err = parsePositions(result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	return positions, nil
}

// PlaceMarketOrder places one market order. Not retried: a duplicate
// submission after an ambiguous failure could double-fill.
func (c *Client) PlaceMarketOrder(ctx context.Context, pair string, qty float64, side exchange.OrderSide) (*exchange.Order, error) {
	result, err := c.httpClient.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category":  c.category,
		"symbol":    PairToSymbol(pair),
		"side":      string(side),
		"orderType": "Market",
		"qty":       strconv.FormatFloat(qty, 'f', -1, 64),
	}).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("place market order %s %s: %w", side, pair, err)
	}

	order, err := parseOrder(result)
	if err != nil {
		return nil, err
	}
	order.Pair = pair
	order.Side = side
	if order.Quantity == 0 {
		order.Quantity = qty
	}
	return order, nil
}

// ClosePosition flattens the broker position for pair by submitting the
// opposing market order with reduceOnly set.
func (c *Client) ClosePosition(ctx context.Context, pair string) (bool, error) {
	positions, err := c.GetOpenPositions(ctx)
	if err != nil {
		return false, err
	}

	for _, pos := range positions {
		if pos.Pair != pair {
			continue
		}
		side := exchange.SideSell
		if pos.Side == "short" {
			side = exchange.SideBuy
		}

		_, err := c.httpClient.NewUtaBybitServiceWithParams(map[string]interface{}{
			"category":   c.category,
			"symbol":     PairToSymbol(pair),
			"side":       string(side),
			"orderType":  "Market",
			"qty":        strconv.FormatFloat(pos.Quantity, 'f', -1, 64),
			"reduceOnly": true,
		}).PlaceOrder(ctx)
		if err != nil {
			return false, fmt.Errorf("close position %s: %w", pair, err)
		}
		return true, nil
	}

	return false, nil
}

// FetchRecentCandles returns the most recent candle window per pair, oldest
// first.
func (c *Client) FetchRecentCandles(ctx context.Context, pairs []string, limit int) (map[string][]types.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	out := make(map[string][]types.Candle, len(pairs))
	for _, pair := range pairs {
		var candles []types.Candle

		err := retryRead(ctx, DefaultRetryConfig(), func() error {
			result, err := c.httpClient.NewUtaBybitServiceWithParams(map[string]interface{}{
				"category": c.category,
				"symbol":   PairToSymbol(pair),
				"interval": c.interval,
				"limit":    limit,
			}).GetMarketKline(ctx)
			if err != nil {
				return err
			}
			candles, err = parseKlines(result, pair)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch candles for %s: %w", pair, err)
		}
		out[pair] = candles
	}
	return out, nil
}

func decodeResult(response interface{}, into interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type %T", response)
	}
	if err := checkRetCode(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return err
	}

	raw, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return json.Unmarshal(raw, into)
}

func parseAccount(response interface{}) (*exchange.Account, error) {
	var wallet struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
		} `json:"list"`
	}
	if err := decodeResult(response, &wallet); err != nil {
		return nil, err
	}
	if len(wallet.List) == 0 {
		return nil, fmt.Errorf("no account data in wallet response")
	}
	return &exchange.Account{
		Cash:   parseFloat64(wallet.List[0].TotalAvailableBalance),
		Equity: parseFloat64(wallet.List[0].TotalEquity),
	}, nil
}

func parsePositions(response interface{}) ([]exchange.BrokerPosition, error) {
	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"` // "Buy" or "Sell"
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	var positions []exchange.BrokerPosition
	for _, p := range result.List {
		size := parseFloat64(p.Size)
		if size == 0 {
			continue
		}
		side := "long"
		if p.Side == "Sell" {
			side = "short"
		}
		positions = append(positions, exchange.BrokerPosition{
			Pair:          SymbolToPair(p.Symbol),
			Quantity:      size,
			Side:          side,
			EntryPrice:    parseFloat64(p.AvgPrice),
			CurrentPrice:  parseFloat64(p.MarkPrice),
			UnrealizedPnL: parseFloat64(p.UnrealisedPnl),
		})
	}
	return positions, nil
}

func parseOrder(response interface{}) (*exchange.Order, error) {
	var result struct {
		OrderID     string `json:"orderId"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
		CreatedTime string `json:"createdTime"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}
	return &exchange.Order{
		OrderID:   result.OrderID,
		AvgPrice:  parseFloat64(result.AvgPrice),
		Quantity:  parseFloat64(result.CumExecQty),
		CreatedAt: parseMillis(result.CreatedTime),
	}, nil
}

func parseKlines(response interface{}, pair string) ([]types.Candle, error) {
	// Kline rows are [startTime, open, high, low, close, volume, turnover],
	// newest first.
	var result struct {
		List [][]string `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(result.List))
	for _, row := range result.List {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, types.Candle{
			Pair:      pair,
			Timestamp: parseMillis(row[0]),
			Open:      parseFloat64(row[1]),
			High:      parseFloat64(row[2]),
			Low:       parseFloat64(row[3]),
			Close:     parseFloat64(row[4]),
			Volume:    parseFloat64(row[5]),
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}
