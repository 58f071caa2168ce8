package trace

import (
	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/wire"
)

// ParsePcapFiles builds the full message pipeline over the given capture
// files: per-file reassembly and decoding, a K-way ordered merge across
// files, then classification against the log's identity indices. The
// returned source is lazy; capture files are read up front but messages are
// decoded as they are pulled.
func ParsePcapFiles(log *logfile.LogFile, paths ...string) (wire.Source, error) {
	decoder := wire.NewDecoder()
	sources := make([]wire.Source, 0, len(paths))
	for _, path := range paths {
		src, err := decoder.FileMessages(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return Classify(Merge(sources...), log), nil
}
