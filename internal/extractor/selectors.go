package extractor

// textContainerSelectors is the ordered list extract_text tries once the
// noise elements have been stripped out. First match wins; body is the
// last resort.
var textContainerSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".content",
	".article",
	".post-content",
	".entry-content",
}

// noiseSelector removes everything extract_text should never read from.
const noiseSelector = "script, style, nav, header, footer, aside, noscript, iframe"

// imageDataAttrs is the priority order of high-resolution/lazy-load data
// attributes find_image_urls checks before falling back to src.
var imageDataAttrs = []string{
	"data-zoom-src", "data-full-url", "data-hires", "data-highres", "data-large",
	"data-src", "data-lazy-src", "data-original", "data-srcset", "data-full",
	"data-image", "data-url",
}

// imagePathHints lets an extension-less <a href> still qualify as an image
// link when its path looks like a gallery/media route.
var imagePathHints = []string{
	"/image", "/img", "/photo", "/media", "/thumb", "/icaimage", "/gallery", "/asset",
}

// skipImagePathPatterns marks favicon/social-icon chrome should_skip_image_url rejects.
var skipImagePathPatterns = []string{
	"favicon.ico", "icon_", "icon_facebook", "icon_instagram", "icon_google",
	"icon_youtube", "icon_pinterest", "icon_twitter", "icon_linkedin",
}

// skipImageURLSubstrings marks tracking/analytics pixels should_skip_image_url rejects.
var skipImageURLSubstrings = []string{
	"facebook.com/tr", "google-analytics.com", "googletagmanager.com",
	"doubleclick.net", "scorecardresearch.com",
}

// assetLinkExtensions are the extensions find_page_links excludes, since
// those links belong to find_pdf_urls/find_image_urls instead.
var assetLinkExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".zip"}

// imageExtensions are recognized image file extensions for looksLikeImage.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".ico"}
