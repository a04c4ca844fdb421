package reports

import "sort"

// Query vocabularies used by the query overview.
const (
	StatusOpen       = "Open"
	StatusInProgress = "InProgress"
	StatusClosed     = "Closed"

	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// CompareInvoiceBuckets orders buckets by year, month, header row before
// per-status rows, then status.
func CompareInvoiceBuckets(a, b InvoiceBucket) int {
	if a.Year != b.Year {
		return a.Year - b.Year
	}
	if a.Month != b.Month {
		return a.Month - b.Month
	}
	if a.HasStatus != b.HasStatus {
		if !a.HasStatus {
			return -1
		}
		return 1
	}
	if !a.HasStatus {
		return 0
	}
	return CompareStatus(a.Status, b.Status)
}

// SortInvoiceBuckets sorts in place with CompareInvoiceBuckets.
func SortInvoiceBuckets(buckets []InvoiceBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return CompareInvoiceBuckets(buckets[i], buckets[j]) < 0
	})
}

// MergeInvoiceBuckets concatenates month header rows and per-status rows
// into one sorted sequence.
func MergeInvoiceBuckets(monthly, byStatus []InvoiceBucket) []InvoiceBucket {
	out := make([]InvoiceBucket, 0, len(monthly)+len(byStatus))
	for _, b := range monthly {
		b.HasStatus = false
		b.Status = nil
		out = append(out, b)
	}
	for _, b := range byStatus {
		b.HasStatus = true
		out = append(out, b)
	}
	SortInvoiceBuckets(out)
	return out
}
