package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// Reconciler maps finished torrent files to episodes and places them into
// the media library
type Reconciler struct {
	blacklist *utils.Blacklist
	link      linkFunc
	logger    *logrus.Logger
}

// NewReconciler creates a reconciler. Files matching the blacklist are never
// placed.
func NewReconciler(blacklist *utils.Blacklist, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		blacklist: blacklist,
		link:      os.Link,
		logger:    logger,
	}
}

// SourcePath resolves a client-reported file to its location on disk. The
// file name usually repeats the torrent name as its first component. Names
// that resolve outside downloadDir are rejected.
func SourcePath(downloadDir, torrentName, fileName string) (string, error) {
	fileName = filepath.ToSlash(fileName)
	var path string
	if fileName == torrentName {
		path = filepath.Join(downloadDir, filepath.FromSlash(fileName))
	} else {
		rel := strings.TrimPrefix(fileName, torrentName+"/")
		path = filepath.Join(downloadDir, torrentName, filepath.FromSlash(rel))
	}

	rel, err := filepath.Rel(downloadDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &FilesystemError{Kind: KindInvalidPath, Path: path, Err: errors.New("outside the download directory")}
	}
	return path, nil
}

// DestinationPath builds <mediaDir>/<sanitized title>/SxxEyy<ext>. A title
// with nothing left after sanitizing is rejected.
func DestinationPath(mediaDir, title string, season, episode int, ext string) (string, error) {
	name := utils.SanitizeTitle(title)
	if name == "" {
		return "", &FilesystemError{Kind: KindInvalidPath, Path: title, Err: errors.New("empty show directory name")}
	}
	return filepath.Join(mediaDir, name, utils.EpisodeFileName(season, episode, ext)), nil
}

// EpisodeFiles returns the placeable video files of a torrent grouped by
// episode number. Blacklisted and unrecognized files are left out.
func (r *Reconciler) EpisodeFiles(files []transmission.TorrentFile) map[int][]transmission.TorrentFile {
	out := make(map[int][]transmission.TorrentFile)
	for _, f := range files {
		if !utils.IsVideoFile(f.Name) {
			continue
		}
		if blocked, term := r.blacklist.IsBlacklisted(f.Name); blocked {
			r.logger.WithFields(logrus.Fields{
				"file": f.Name,
				"term": term,
			}).Debug("Skipping blacklisted file")
			continue
		}
		episode, err := utils.ExtractEpisodeNumber(f.Name)
		if err != nil {
			continue
		}
		out[episode] = append(out[episode], f)
	}
	return out
}

// SelectFiles computes the file selection changes that make the client
// download only files of tracked episodes. Only files whose current wanted
// flag differs are returned.
func SelectFiles(files []transmission.TorrentFile, tracked models.EpisodeSet) (wanted, unwanted []int) {
	for _, f := range files {
		episode, err := utils.ExtractEpisodeNumber(f.Name)
		want := err == nil && tracked.Contains(episode)
		switch {
		case want && !f.Wanted:
			wanted = append(wanted, f.Index)
		case !want && f.Wanted:
			unwanted = append(unwanted, f.Index)
		}
	}
	return wanted, unwanted
}

// largest picks the biggest file, which skips samples and extras that share
// an episode number
func largest(files []transmission.TorrentFile) transmission.TorrentFile {
	best := files[0]
	for _, f := range files[1:] {
		if f.Length > best.Length {
			best = f
		}
	}
	return best
}

// Reconcile places every tracked episode found in the torrent and returns
// episode -> destination for the successful ones. Episodes that could not be
// placed are absent from the result and are retried on a later pass; their
// errors are joined into the returned error.
func (r *Reconciler) Reconcile(release *models.Release, status *transmission.TorrentStatus, downloadDir, mediaDir string) (map[int]string, error) {
	if downloadDir == "" || mediaDir == "" {
		return nil, errors.New("download and media directories must be configured")
	}

	placed := make(map[int]string)
	var errs []error

	season := 1
	if release.Season != nil {
		season = *release.Season
	}

	byEpisode := r.EpisodeFiles(status.Files)
	for _, episode := range release.TrackedEpisodes {
		log := r.logger.WithFields(logrus.Fields{
			"release_id": release.ID,
			"title":      release.Title,
			"episode":    episode,
		})

		files := byEpisode[episode]
		if len(files) == 0 {
			log.Info("No video file found for tracked episode")
			continue
		}

		file := largest(files)
		src, err := SourcePath(downloadDir, status.Name, file.Name)
		if err != nil {
			log.WithError(err).Error("Refusing to place episode")
			errs = append(errs, fmt.Errorf("episode %d: %w", episode, err))
			continue
		}
		dst, err := DestinationPath(mediaDir, release.Title, season, episode, filepath.Ext(file.Name))
		if err != nil {
			log.WithError(err).Error("Refusing to place episode")
			errs = append(errs, fmt.Errorf("episode %d: %w", episode, err))
			continue
		}

		method, err := place(src, dst, r.link)
		if err != nil {
			log.WithError(err).WithField("source", src).Error("Failed to place episode")
			errs = append(errs, fmt.Errorf("episode %d: %w", episode, err))
			continue
		}

		log.WithFields(logrus.Fields{
			"source":      src,
			"destination": dst,
			"method":      method,
		}).Info("Placed episode")
		placed[episode] = dst
	}

	return placed, errors.Join(errs...)
}

// PruneMissing splits files into those still on disk and those gone
func PruneMissing(files []string) (kept, missing []string) {
	kept = make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil && os.IsNotExist(err) {
			missing = append(missing, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, missing
}

// RemoveFiles deletes placed files, best effort, and then any show
// directory left empty. It returns the paths that could not be removed.
func RemoveFiles(files []string) []string {
	var failed []string
	dirs := make(map[string]struct{})
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			failed = append(failed, f)
			continue
		}
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		// Fails while the directory still has entries
		_ = os.Remove(dir)
	}
	return failed
}
