package timeline

import "errors"

var (
	ErrTrackNotFound     = errors.New("track not found")
	ErrClipNotFound      = errors.New("clip not found")
	ErrAssetNotFound     = errors.New("asset not found")
	ErrAssetMissing      = errors.New("clip references a missing asset")
	ErrIncompatibleAsset = errors.New("asset type incompatible with track type")
	ErrInvalidEdit       = errors.New("invalid edit operation")
)
