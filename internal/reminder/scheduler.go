package reminder

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// StartScheduler runs CheckAndSend on the given cron expression (standard
// five-field syntax, e.g. "0 9 * * *" for daily at 09:00 server time) and
// returns the running cron so the caller can Stop it on shutdown.
func (s *Service) StartScheduler(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		results, err := s.CheckAndSend(context.Background())
		if err != nil {
			log.Printf("reminder: scheduled run failed: %v", err)
			return
		}
		sent := 0
		for _, r := range results {
			if r.Success {
				sent++
			} else {
				log.Printf("reminder: send to user %s failed: %s", r.UserID, r.Error)
			}
		}
		log.Printf("reminder: scheduled run sent %d of %d reminders", sent, len(results))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
