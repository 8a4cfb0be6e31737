package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"matchbook/internal/api"
	"matchbook/internal/common"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "http://127.0.0.1:3000", "Base URL of the matching server")
	action := flag.String("action", "place", "Action to perform: ['place', 'book', 'trades']")

	// Order Parameters
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.Uint64("price", 100, "Limit price")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")
	wait := flag.Bool("wait", false, "Wait for each order to be matched and print its trades")

	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(*serverAddr, "/")

	// 2. Execute Action
	switch strings.ToLower(*action) {
	case "place":
		side, err := common.ParseSide(strings.ToLower(*sideStr))
		if err != nil {
			fmt.Println("Error: -side must be 'buy' or 'sell'.")
			flag.Usage()
			os.Exit(1)
		}
		for _, q := range parseQuantities(*qtyStr) {
			order := common.Order{Side: side, Price: *price, Quantity: q}
			if err := sendPlaceOrder(client, base, order, *wait); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
			}
		}

	case "book":
		var book api.BookResponse
		if err := getJSON(client, base+"/book", &book); err != nil {
			log.Fatalf("Failed to fetch book: %v", err)
		}
		printBook(book)

	case "trades":
		var trades api.TradesResponse
		if err := getJSON(client, base+"/trades", &trades); err != nil {
			log.Fatalf("Failed to fetch trades: %v", err)
		}
		fmt.Printf("%d trade(s) recorded, %d retained\n", trades.Total, len(trades.Trades))
		for _, trade := range trades.Trades {
			fmt.Printf("  Qty: %d | Price: %d\n", trade.Quantity, trade.Price)
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

// sendPlaceOrder posts one order and prints the server's answer.
func sendPlaceOrder(client *http.Client, base string, order common.Order, wait bool) error {
	body, err := json.Marshal(order)
	if err != nil {
		return err
	}
	url := base + "/orders"
	if wait {
		url += "?wait=true"
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return readError(resp)
	}

	if !wait {
		fmt.Printf("-> Sent %s Order: %d @ %d\n", strings.ToUpper(order.Side.String()), order.Quantity, order.Price)
		return nil
	}

	var placed api.PlaceOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&placed); err != nil {
		return err
	}
	fmt.Printf("-> %s Order: %d @ %d, %d fill(s)\n",
		strings.ToUpper(order.Side.String()), order.Quantity, order.Price, len(placed.Trades))
	for _, trade := range placed.Trades {
		fmt.Printf("   [EXECUTION] Qty: %d | Price: %d\n", trade.Quantity, trade.Price)
	}
	return nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return readError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var apiErr api.ErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: %s %s", resp.Status, apiErr.Error, apiErr.Message)
	}
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
}

func printBook(book api.BookResponse) {
	fmt.Println("ASKS")
	// Print asks worst to best so the spread sits in the middle.
	for i := len(book.Asks) - 1; i >= 0; i-- {
		printLevel(book.Asks[i].Price, book.Asks[i].Orders)
	}
	fmt.Println("----")
	for _, level := range book.Bids {
		printLevel(level.Price, level.Orders)
	}
	fmt.Println("BIDS")
}

func printLevel(price uint64, orders []common.Order) {
	var total uint64
	for _, order := range orders {
		total += order.Quantity
	}
	fmt.Printf("  %8d | %8d (%d orders)\n", price, total, len(orders))
}
