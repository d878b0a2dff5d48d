package usecase

import (
	"time"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/internal/domain"
)

func newEvent(subtype string, actor domain.Actor, kind domain.Kind, objectID int64, identifier, comment string, params map[string]any) edubase.Event {
	return edubase.Event{
		Type:       string(kind),
		Subtype:    subtype,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Kind:       string(kind),
		ObjectID:   objectID,
		Identifier: identifier,
		Comment:    comment,
		Params:     params,
		Time:       time.Now().UTC(),
	}
}
