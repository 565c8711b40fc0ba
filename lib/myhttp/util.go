package myhttp

import (
	"fmt"
	"os"
)

// GuessHostnameWithScheme derives the base URL under which this process is
// reachable, used when registering pubsub push subscriptions.
func GuessHostnameWithScheme() string {
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project != "" {
		return fmt.Sprintf("https://%s.appspot.com", project)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return fmt.Sprintf("http://localhost:%s", port)
}
