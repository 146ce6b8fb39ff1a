// cronometer-export logs into Cronometer, exports daily nutrition
// totals for a date range, and prints them as a JSON array on stdout.
//
// Cronometer has no public API, so this binary wraps the gocronometer
// scraper. It is invoked by lifesync as a subprocess; diagnostics go
// to stderr and the exit code signals success.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jrmycanady/gocronometer"
)

type dayTotals struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
}

func main() {
	username := flag.String("username", "", "Cronometer username (email)")
	password := flag.String("password", "", "Cronometer password")
	startDate := flag.String("start", "", "start date (YYYY-MM-DD), default 30 days ago")
	endDate := flag.String("end", "", "end date (YYYY-MM-DD), default today")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "error: -username and -password are required")
		flag.Usage()
		os.Exit(1)
	}

	start, end, err := parseRange(*startDate, *endDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	client := gocronometer.NewClient(nil)
	if err := client.Login(ctx, *username, *password); err != nil {
		fmt.Fprintf(os.Stderr, "error: cronometer login failed: %v\n", err)
		os.Exit(1)
	}

	csvData, err := client.ExportDailyNutrition(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: nutrition export failed: %v\n", err)
		os.Exit(1)
	}

	days, err := parseExport(csvData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(days, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Now().AddDate(0, 0, -30)
	end := time.Now()
	var err error

	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date %q: %v", startStr, err)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date %q: %v", endStr, err)
		}
	}
	return start, end, nil
}

// parseExport pulls the macro columns out of the daily nutrition CSV.
// Days with no logged food export as all zeros and are omitted.
func parseExport(csvData string) ([]dayTotals, error) {
	records, err := csv.NewReader(strings.NewReader(csvData)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed CSV export: %v", err)
	}
	if len(records) < 2 {
		return []dayTotals{}, nil
	}

	header := records[0]
	cols := map[string]int{}
	for _, name := range []string{"Day", "Energy (kcal)", "Fat (g)", "Carbs (g)", "Protein (g)"} {
		idx := columnIndex(header, name)
		if idx == -1 {
			return nil, fmt.Errorf("CSV export missing column %q", name)
		}
		cols[name] = idx
	}

	days := []dayTotals{}
	for _, row := range records[1:] {
		if len(row) <= maxIndex(cols) {
			continue
		}

		d := dayTotals{
			Date:     row[cols["Day"]],
			Calories: parseFloat(row[cols["Energy (kcal)"]]),
			Fat:      parseFloat(row[cols["Fat (g)"]]),
			Carbs:    parseFloat(row[cols["Carbs (g)"]]),
			Protein:  parseFloat(row[cols["Protein (g)"]]),
		}
		if d.Calories == 0 && d.Fat == 0 && d.Carbs == 0 && d.Protein == 0 {
			continue
		}
		days = append(days, d)
	}

	return days, nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

func maxIndex(cols map[string]int) int {
	m := 0
	for _, idx := range cols {
		if idx > m {
			m = idx
		}
	}
	return m
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
