// Package load provides the public API for running synthetic loads from Go
// code.
//
// A load runs the enabled CPU, memory and disk stress units concurrently,
// waits for all of them, then returns a random payload of ASCII letters
// whose size follows an exponential distribution.
//
// # Quick Start
//
// Payload mirrors a service handler that receives its configuration with
// every call. The first successful configuration is cached for the lifetime
// of the process and later inputs are ignored:
//
//	payload, err := load.Payload(ctx, map[string]interface{}{
//	    "cpu_stress":         map[string]interface{}{"run": true, "range_complexity": []int{50, 200}},
//	    "mean_response_size": 2,
//	})
//
// # Repeated Loads
//
// A Runner keeps one configuration and aggregates every load it runs:
//
//	cfg, _ := load.Resolve(map[string]interface{}{"disk_stress": map[string]interface{}{"run": true}})
//	runner := load.NewRunner(cfg)
//	for i := 0; i < 10; i++ {
//	    if _, err := runner.Run(ctx); err != nil {
//	        log.Println(err)
//	    }
//	}
//	fmt.Printf("P95: %v\n", runner.GetMetrics().Latency.P95)
//
// # Configuration
//
// Partial configurations are deep-merged over the defaults, so
// {"cpu_stress": {"run": true}} keeps every other CPU default. The legacy
// key "mean_bandwidth" is accepted as an alias of "mean_response_size".
package load
