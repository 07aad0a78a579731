package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// TurnPrinterFunc returns a handler that renders turn events for an
// interactive console. Replies are printed under the given speaker name,
// dispatches as YAML one-liners.
func TurnPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventTurnFinal:
			if name != "" {
				_, err = fmt.Fprintf(w, "\n%s: %s\n", name, p_.Reply)
			} else {
				_, err = fmt.Fprintf(w, "%s\n", p_.Reply)
			}
			if err != nil {
				return err
			}
			if p_.ContinueConversation {
				if _, err := fmt.Fprintf(w, "(expects an answer)\n"); err != nil {
					return err
				}
			}

		case *EventTurnError:
			if _, err := fmt.Fprintf(w, "\n[%s] %s\n", p_.Kind, p_.ErrorString); err != nil {
				return err
			}

		case *EventActionDispatch:
			v_, err := yaml.Marshal(map[string]string{"action": p_.Service})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s", v_); err != nil {
				return err
			}

		case *EventActionSkipped:
			if _, err := fmt.Fprintf(w, "skipped %s: %s\n", p_.Service, p_.Reason); err != nil {
				return err
			}

		case *EventMediaDispatch:
			v_, err := yaml.Marshal(map[string]string{"media": p_.MediaType, "entity": p_.EntityID})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s", v_); err != nil {
				return err
			}
		}

		return nil
	}
}
