package cache

// Keyer generates cache keys for each kind of cached value.
type Keyer interface {
	// DatasetKey returns the key for the raw body fetched from source.
	DatasetKey(source string) string

	// FrameKey returns the key for one rendered frame of a dataset.
	FrameKey(datasetHash string, opts FrameKeyOpts) string
}

// FrameKeyOpts holds every option that changes the bytes of a rendered frame.
type FrameKeyOpts struct {
	Step        string  `json:"step"`
	Format      string  `json:"format"`
	SettleTicks int     `json:"settle_ticks"`
	Seed        uint64  `json:"seed"`
	Tooltips    bool    `json:"tooltips"`
	Scale       float64 `json:"scale,omitempty"`
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default Keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// DatasetKey hashes the source location so URLs and paths of any length map to
// fixed-size keys.
func (DefaultKeyer) DatasetKey(source string) string {
	return hashKey("dataset", source)
}

// FrameKey combines the dataset hash with the frame options.
func (DefaultKeyer) FrameKey(datasetHash string, opts FrameKeyOpts) string {
	return hashKey("frame", datasetHash, opts)
}
