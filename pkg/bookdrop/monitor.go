package bookdrop

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/foliobooks/folio/pkg/epub"
	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/scanner"
	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// acceptedMIMETypes maps a book format to the mime types a dropped file with
// that extension may detect as. Anything else is treated as a mislabeled file
// and skipped.
var acceptedMIMETypes = map[string][]string{
	models.FormatEPUB: {"application/epub+zip", "application/zip"},
	models.FormatCBZ:  {"application/zip", "application/x-zip-compressed"},
	models.FormatM4B:  {"audio/x-m4a", "audio/mp4", "video/mp4"},
}

// Monitor watches the drop folder, funnels filesystem notifications through
// the dedup queue, and processes them one at a time on a single consumer
// goroutine.
type Monitor struct {
	svc       *Service
	queue     *Queue
	directory string
	watcher   *fsnotify.Watcher
	// notify, when set, is called with the pending-review count after every
	// event that changes it.
	notify func(pending int)
	done   chan struct{}
}

func NewMonitor(svc *Service, directory string, queueSize int, notify func(pending int)) *Monitor {
	return &Monitor{
		svc:       svc,
		queue:     NewQueue(queueSize),
		directory: directory,
		notify:    notify,
		done:      make(chan struct{}),
	}
}

// Start begins watching the drop folder and consuming events. It returns
// once the watcher is installed; processing continues until Stop.
func (m *Monitor) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	m.watcher = watcher

	if err := m.watchTree(ctx, m.directory); err != nil {
		watcher.Close()
		return err
	}

	go m.translate(ctx)
	go m.consume(ctx)

	return nil
}

// Stop shuts down intake and waits for the in-flight event to finish.
func (m *Monitor) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.queue.Close()
	<-m.done
}

// Enqueue feeds an event into the queue directly, bypassing fsnotify. The
// initial sweep of a pre-populated drop folder uses this.
func (m *Monitor) Enqueue(ev Event) bool {
	return m.queue.Enqueue(ev)
}

// Sweep enqueues every file already sitting in the drop folder, so files
// dropped while the process was down still get picked up on startup.
func (m *Monitor) Sweep(ctx context.Context) {
	log := logger.FromContext(ctx)

	_ = filepath.Walk(m.directory, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn("skipping unreadable path during sweep", logger.Data{"path": p, "error": err.Error()})
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && p != m.directory {
				return filepath.SkipDir
			}
			return nil
		}
		m.queue.Enqueue(Event{Path: p, Kind: EventCreated})
		return nil
	})
}

// watchTree installs watches on dir and every subdirectory.
func (m *Monitor) watchTree(ctx context.Context, dir string) error {
	log := logger.FromContext(ctx)

	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn("skipping unwatchable path", logger.Data{"path": p, "error": err.Error()})
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && p != dir {
			return filepath.SkipDir
		}
		if err := m.watcher.Add(p); err != nil {
			log.Warn("failed to watch directory", logger.Data{"path": p, "error": err.Error()})
		}
		return nil
	})
}

// translate converts raw fsnotify events into queue events.
func (m *Monitor) translate(ctx context.Context) {
	log := logger.FromContext(ctx)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				m.queue.Enqueue(Event{Path: event.Name, Kind: EventDeleted})
			case event.Op&fsnotify.Create != 0:
				// A new directory needs a watch of its own; its files arrive
				// as separate events.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := m.watchTree(ctx, event.Name); err != nil {
						log.Warn("failed to watch new directory", logger.Data{"path": event.Name, "error": err.Error()})
					}
					continue
				}
				m.queue.Enqueue(Event{Path: event.Name, Kind: EventCreated})
			case event.Op&fsnotify.Write != 0:
				m.queue.Enqueue(Event{Path: event.Name, Kind: EventModified})
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Err(err).Warn("drop folder watcher error")
		}
	}
}

// consume is the single consumer goroutine: events are handled strictly in
// arrival order, one at a time.
func (m *Monitor) consume(ctx context.Context) {
	defer close(m.done)

	log := logger.FromContext(ctx)

	for {
		ev, ok := m.queue.Dequeue()
		if !ok {
			return
		}
		if err := m.handleEvent(ctx, ev); err != nil {
			// One bad file must not stall the queue.
			log.Err(err).Warn("failed to process drop folder event", logger.Data{"path": ev.Path, "kind": string(ev.Kind)})
		}
	}
}

func (m *Monitor) handleEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventCreated, EventModified:
		return m.handleUpsert(ctx, ev.Path)
	case EventDeleted:
		return m.handleDelete(ctx, ev.Path)
	}
	return nil
}

func (m *Monitor) handleUpsert(ctx context.Context, path string) error {
	log := logger.FromContext(ctx).Data(logger.Data{"path": path})

	info, err := os.Stat(path)
	if err != nil {
		// Gone again before we got to it; the delete event will follow.
		return nil
	}
	if info.IsDir() {
		return nil
	}

	fileName := filepath.Base(path)
	format := scanner.Classify(fileName)
	if format == models.FormatNone {
		return nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if !mimeAccepted(format, mtype) {
		log.Data(logger.Data{"detected": mtype.String()}).Warn("dropped file content doesn't match its extension")
		return nil
	}

	hash, err := hashFile(path)
	if err != nil {
		return errors.WithStack(err)
	}

	file := &models.BookdropFile{
		FilePath:      path,
		FileName:      fileName,
		Format:        format,
		FilesizeBytes: info.Size(),
		ContentHash:   hash,
		Status:        models.BookdropStatusPendingReview,
	}

	// Metadata extraction is best-effort: a corrupt archive still gets a
	// pending-review row, just with filename-derived metadata.
	md := extractMetadata(path, fileName, format)
	if data, err := json.Marshal(md); err == nil {
		file.ExtractedMetadata = string(data)
	}

	if _, err := m.svc.CreateFile(ctx, file); err != nil {
		return errors.WithStack(err)
	}

	m.notifyPending(ctx)
	return nil
}

func (m *Monitor) handleDelete(ctx context.Context, path string) error {
	deleted, err := m.svc.DeleteByPathPrefix(ctx, path)
	if err != nil {
		return errors.WithStack(err)
	}
	if deleted > 0 {
		m.notifyPending(ctx)
	}
	return nil
}

func (m *Monitor) notifyPending(ctx context.Context) {
	if m.notify == nil {
		return
	}
	count, err := m.svc.CountPending(ctx)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to count pending bookdrop files")
		return
	}
	m.notify(count)
}

func extractMetadata(path, fileName, format string) *mediafile.ParsedMetadata {
	if format == models.FormatEPUB {
		if md, err := epub.Parse(path); err == nil {
			return md
		}
	}
	return mediafile.FromFilename(fileName)
}

func mimeAccepted(format string, mtype *mimetype.MIME) bool {
	for _, accepted := range acceptedMIMETypes[format] {
		if mtype.Is(accepted) {
			return true
		}
	}
	return false
}
