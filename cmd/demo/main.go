package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/drag0dev/nebula/kvengine"
)

func main() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("nebula Demo: LSM-tree embedded key-value store")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	dataDir := "./data-demo"
	defer os.RemoveAll(dataDir)

	cfg := kvengine.Default(dataDir)
	cfg.MemtableCapacity = 4 // small on purpose, so the demo actually triggers a flush

	engine, err := kvengine.Open(cfg, log.Default(), kvengine.NewMetrics())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("[writing data]")
	testData := map[string]string{
		"user:1001":   `{"name":"Alice","age":30}`,
		"user:1002":   `{"name":"Bob","age":25}`,
		"user:1003":   `{"name":"Charlie","age":35}`,
		"product:101": `{"name":"Laptop","price":999.99}`,
		"product:102": `{"name":"Mouse","price":29.99}`,
	}
	for key, value := range testData {
		if err := engine.Put(key, []byte(value)); err != nil {
			log.Printf("put %s: %v", key, err)
			continue
		}
		fmt.Printf("  PUT %s\n", key)
	}

	fmt.Println("\n[reading data back]")
	for key := range testData {
		e, ok, err := engine.Get(key)
		if err != nil {
			log.Printf("get %s: %v", key, err)
			continue
		}
		if !ok {
			fmt.Printf("  GET %s -> (not found)\n", key)
			continue
		}
		fmt.Printf("  GET %s -> %s\n", key, truncate(string(e.Value), 40))
	}

	fmt.Println("\n[deleting one key]")
	if err := engine.Delete("user:1002"); err != nil {
		log.Printf("delete user:1002: %v", err)
	}
	if _, ok, _ := engine.Get("user:1002"); !ok {
		fmt.Println("  user:1002 correctly reports not found after delete")
	}

	fmt.Println("\n[prefix scan: user:]")
	users, err := engine.List("user:", nil)
	if err != nil {
		log.Printf("list user:: %v", err)
	}
	for _, e := range users {
		fmt.Printf("  %s -> %s\n", e.Key, truncate(string(e.Value), 40))
	}

	fmt.Println("\n[range scan: product:100 .. product:999]")
	products, err := engine.RangeScan("product:100", "product:999", nil)
	if err != nil {
		log.Printf("range_scan product: %v", err)
	}
	for _, e := range products {
		fmt.Printf("  %s -> %s\n", e.Key, truncate(string(e.Value), 40))
	}

	if err := engine.Quit(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("\nengine closed cleanly")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
