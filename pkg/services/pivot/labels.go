package pivot

import "strings"

var columnLabels = map[string]string{
	"account_id":      "Account ID",
	"country_name":    "Country Name",
	"provider":        "Provider",
	"session_type":    "Session Type",
	"status":          "Status",
	"estimated_price": "Estimated Price",
	"total_price":     "Total Price",
	"message_id":      "Message ID",
	"client_ref":      "Client Reference",
	"direction":       "Direction",
	"from":            "From",
	"to":              "To",
	"message_body":    "Message body",
	"country":         "Country Code",
	"currency":        "Currency",
	"date_received":   "Date Received",
	"date_finalized":  "Date Finalized",
	"latency":         "Latency",
	"error_code":      "Error Code",
	"network":         "Network",
	"network_name":    "Network Name",
}

// Label returns a human readable name for a reports API column.
// Unknown columns are converted from snake case: "total_price" -> "Total Price".
func Label(column string) string {
	if label, ok := columnLabels[column]; ok {
		return label
	}

	words := strings.Split(column, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
