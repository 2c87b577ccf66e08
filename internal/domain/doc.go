// Package domain models Copernicus Sentinel products and the storage tiers
// an on-demand NetCDF conversion passes through.
//
// # Product Names
//
// Sentinel product names are underscore-delimited strings whose leading token
// identifies the platform, e.g.
//
//	S1A_IW_GRDM_1SDV_20230101T000000_20230101T000025_046649_0597D1_D56B
//	S2A_MSIL1C_20230615T101031_N0509_R022_T32TQM_20230615T121152
//
// Two families are supported:
//
//	S1* (Sentinel-1 radar): the second token is the acquisition beam mode
//	  ("IW", "EW", ...). Names without a second token are rejected.
//	S2* (Sentinel-2 optical): no beam mode token.
//
// Every name embeds an acquisition timestamp as an 8-digit date immediately
// followed by "T" (e.g. "20230615T101031"). Names without such a token, or
// with a leading token outside the two families, never produce a Product.
//
// # Storage Tiers
//
// A converted NetCDF artifact can live in three places:
//
//	Operational: a long-lived archive partitioned as
//	  <root>/<platform>/<year>/<month>/<day>[/<mode>]/<name>.nc,
//	  served by the operational THREDDS instance.
//	Scratch: a per-request working directory holding the downloaded SAFE
//	  archive, the extracted product, and the final <name>.nc, served by the
//	  on-demand THREDDS instance. Flat: the conversion tooling reads and
//	  writes a single directory.
//	Sibling pool: the scratch directories of other still-live requests,
//	  searched as a fallback before producing a fresh copy.
//
// Tiers are plain directories. An external sweeper evicts entries by
// modification time, which is why reusing an artifact touches it: the mtime
// is the retention clock.
//
// # Retention
//
// Two windows govern freshness, in whole days (ages are truncated):
//
//	age >= operational window          -> expired, never served
//	remaining lifetime < scratch window -> mirror into scratch (fresh clock)
//	otherwise                           -> serve the operational copy as-is
//
// The mirror rule keeps an artifact nearing operational eviction from
// vanishing while a scratch-tier consumer is still using it.
package domain
