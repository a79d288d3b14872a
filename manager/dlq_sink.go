package manager

import (
	"context"
	"fmt"

	"github.com/simlattice/indexer/blobstore"
	"github.com/simlattice/indexer/indexer"
	"github.com/simlattice/indexer/simtypes"
)

// blobDLQSink implements batchindexer.DLQSink by writing a small record
// under the run's blob prefix, so a moved-to-DLQ batch stays inspectable
// next to the batch it failed to index rather than only appearing in logs.
type blobDLQSink struct {
	base   *indexer.Base
	writer blobstore.Writer
}

func (s *blobDLQSink) Send(path simtypes.StoragePath, reason string) error {
	name := fmt.Sprintf("dlq/%s", path)
	_, err := s.writer.WriteMessage(context.Background(), s.base.RunID, name, map[string]string{
		"path":   string(path),
		"reason": reason,
	})
	return err
}
