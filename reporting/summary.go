package reporting

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

var summaryRegex = regexp.MustCompile(`Tests run: (\d+), Failures: (\d+), Ignored: (\d+), Time elapsed: (\d+) sec`)

// FormatSummary renders the one-line summary of an invocation. Elapsed time
// is truncated to whole seconds.
func FormatSummary(r types.RunResult) string {
	return fmt.Sprintf("Tests run: %d, Failures: %d, Ignored: %d, Time elapsed: %d sec",
		r.RunCount, r.FailureCount, r.IgnoreCount, r.ElapsedMillis/1000)
}

// PrintSummary writes the summary line to w
func PrintSummary(w io.Writer, r types.RunResult) error {
	_, err := fmt.Fprintln(w, FormatSummary(r))
	return err
}

// ParseSummary reads the last summary line found in output. The elapsed
// time only has second resolution.
func ParseSummary(output string) (types.RunResult, bool) {
	var last []string
	for _, line := range strings.Split(output, "\n") {
		if m := summaryRegex.FindStringSubmatch(line); m != nil {
			last = m
		}
	}
	if last == nil {
		return types.RunResult{}, false
	}

	nums := make([]int64, 4)
	for i := range nums {
		n, err := strconv.ParseInt(last[i+1], 10, 64)
		if err != nil {
			return types.RunResult{}, false
		}
		nums[i] = n
	}
	return types.RunResult{
		RunCount:      int(nums[0]),
		FailureCount:  int(nums[1]),
		IgnoreCount:   int(nums[2]),
		ElapsedMillis: nums[3] * 1000,
	}, true
}
