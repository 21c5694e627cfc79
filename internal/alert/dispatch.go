package alert

import "text/template"

// SendAlerts calls every channel's Send, recovering a panic from any
// one of them into a false result for that channel only — grounded on
// the teacher's per-goroutine NotificationManager.Send, adapted to a
// synchronous map-of-results return since channel independence, not
// concurrency, is the contract here.
func SendAlerts(payload AlertPayload, channels []Channel, tmpl *template.Template) map[string]bool {
	results := make(map[string]bool, len(channels))
	for _, ch := range channels {
		results[ch.Name()] = sendOne(ch, payload, tmpl)
	}
	return results
}

func sendOne(ch Channel, payload AlertPayload, tmpl *template.Template) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return ch.Send(payload, tmpl)
}
