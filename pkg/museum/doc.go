// Package museum implements the collection adapters the acquisition engine
// draws candidates from.
//
// Each adapter translates one museum API into models.Candidate values and
// downloads images for them:
//
//	met      Metropolitan Museum of Art (no key)
//	aic      Art Institute of Chicago, IIIF images (no key)
//	cma      Cleveland Museum of Art open access (no key)
//	harvard  Harvard Art Museums (API key)
//	rijks    Rijksmuseum (API key)
//
// Adapters pick search pages at random and never revisit a page within one
// instance, so an adapter is meant to live for a single engine run.
package museum
