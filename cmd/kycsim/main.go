// Command kycsim drives the mock KYC scorer offline. It scores a single
// applicant or runs many seeded trials and summarizes the outcome mix, which
// is handy when tuning thresholds or checking the sanctions hit rate.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
