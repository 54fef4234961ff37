// Package annotate adds star-count badges and status controls to repository
// search results.
//
// A scan finds the results container, walks its entries in document order and,
// for each entry not yet annotated, inserts a composite right after the
// entry's primary link:
//
//	<span class="starmark-annotation" data-repo="owner/name" data-stars="N">
//	  <span class="github-star-counter" style="margin-left: 8px">⭐ N</span>
//	  <button class="starmark-status" data-repo="owner/name" data-status="unset">○</button>
//	</span>
//
// Scans are idempotent: an entry that already carries a badge is skipped.
// An entry whose identifier cannot be extracted, or whose count is absent,
// is skipped without affecting the others.
package annotate
