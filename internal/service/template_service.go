package service

import (
	"sort"
	"strings"
)

// Notification templates rendered by EventWorker.
const (
	TicketCreatedTemplate   = "New {priority} priority ticket #{ticket_id} for {name}: {issue} ({open_tickets} open)"
	CustomerUpdatedTemplate = "Customer #{customer_id} {name} updated: {fields}"
)

// RenderTemplate replaces each {key} with its value in a single pass, so
// placeholders inside substituted values are left as is. Empty values render
// as N/A.
func RenderTemplate(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := data[k]
		if v == "" {
			v = "N/A"
		}
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
