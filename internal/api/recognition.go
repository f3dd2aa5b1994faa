package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reflow/internal/broker"
	"reflow/internal/pipeline"
	"reflow/internal/tasks"
)

const taskKindRecognition = "recognition"

func (s *Server) handleRecognize(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if len(sess.Pages) == 0 {
		respondDomainError(c, pipeline.ErrNoPages)
		return
	}

	// The processing transition happens inside the admitted task: a request
	// rejected with ErrSessionBusy must leave the session exactly as it was.
	taskID, err := s.tasks.StartTask(id, taskKindRecognition, func(ctx context.Context) (tasks.Result, error) {
		if _, err := s.registry.MarkProcessing(id); err != nil {
			return tasks.Result{}, err
		}
		doc, err := s.pipeline.Run(ctx, id, func(evt broker.Event) {
			s.tasks.Publish(id, evt)
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.registry.MarkError(id, err.Error())
				s.tasks.Publish(id, broker.Event{
					Name:  broker.EventRecognitionError,
					Error: err.Error(),
				})
			}
			return tasks.Result{}, err
		}
		return tasks.Result{Pages: len(doc.Pages)}, nil
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "session_id": id})
}

func (s *Server) handleCancelTask(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	task, running := s.tasks.ActiveTask(id)
	if !running {
		respondMessage(c, http.StatusNotFound, "no task in flight for session")
		return
	}
	s.tasks.Cancel(task.ID)
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID})
}

func (s *Server) handleEvents(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if _, err := s.registry.Get(id); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	s.tasks.Stream(c.Request.Context(), id, func(evt broker.Event) error {
		frame, err := evt.Frame()
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write(frame); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
}
