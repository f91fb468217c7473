package sanity

import "sort"

// Query is a named GROQ query. Params lists the parameter names a caller
// may supply; anything else is ignored.
type Query struct {
	Name   string
	GROQ   string
	Params []string
}

var registry = map[string]Query{}

func register(name, groq string, params ...string) {
	registry[name] = Query{Name: name, GROQ: groq, Params: params}
}

// Lookup returns the registered query called name.
func Lookup(name string) (Query, bool) {
	q, ok := registry[name]
	return q, ok
}

// Names returns the registered query names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

const clinicFields = `
  _id,
  identifier,
  emoji,
  title,
  subtitle,
  locationLabel,
  location,
  hoursLabel,
  hours,
  servicesTitle,
  services[],
  ctaText,
  phone,
  mapEmbedUrl,
  visibleForLocales,
  order`

const guideFields = `
  _id,
  identifier,
  emoji,
  title,
  description,
  category,
  ctaText,
  "downloadUrl": downloadFile.asset->url,
  order`

const studyContentFields = `
  _id,
  identifier,
  emoji,
  title,
  contentType,
  typeLabel,
  date,
  dateLabel,
  duration,
  description,
  ctaText,
  link,
  cardColor,
  order`

func init() {
	register("site_settings", `*[_type == "siteSettings"][0]{
  siteName,
  siteSubtitle,
  contactButtonText,
  navigation { about, clinics, services, innovation, guides, study },
  footer {
    quickLinksTitle,
    contactTitle,
    infoTitle,
    copyright,
    phone,
    location,
    addresses[],
    infoLinks { privacy, terms, accessibility, sitemap, comingSoon }
  },
  defaultSeo
}`)

	register("home_page", `*[_type == "homePage"][0]{
  hero {
    title,
    subtitle,
    descriptionLine1,
    descriptionLine2,
    descriptionLine3,
    descriptionLine4,
    descriptionHighlighted,
    descriptionClosing,
    image,
    stats[] { number, label },
    ctaButtons[] { text, link, variant }
  },
  credentials {
    title,
    education { title, items[] },
    specializations { title, items[] }
  },
  testimonials {
    title,
    items[]-> { _id, author, rating, ratingNumber, text, image }
  },
  seo
}`)

	register("about_page", `*[_type == "aboutPage"][0]{
  title,
  intro,
  expertise { title, text },
  specializations { title, items[] { title, description } },
  academic { title, paragraphs[] },
  educationAffiliations {
    title,
    education { title, items[] },
    memberships { title, items[] }
  },
  seo
}`)

	register("innovation_page", `*[_type == "innovationPage"][0]{
  title,
  subtitle,
  keyInnovations {
    title,
    techniques { title, items[] },
    researchFocus { title, items[] }
  },
  publicationsTitle,
  seo
}`)

	register("guides_page", `*[_type == "guidesPage"][0]{
  title,
  subtitle,
  quickAccess { preSurgery, postSurgery, ptExercises, recoveryTimeline },
  preSurgerySectionTitle,
  postSurgerySectionTitle,
  bundle { title, description, ctaText, "fileUrl": file.asset->url },
  faqSectionTitle,
  seo
}`)

	register("study_page", `*[_type == "studyPage"][0]{
  title,
  subtitle,
  search {
    placeholder,
    filters { all, articles, caseStudies, lectures, research }
  },
  subscribe { title, description, placeholder, ctaText },
  seo
}`)

	register("clinics", `*[_type == "clinic"] | order(order asc) {`+clinicFields+`
}`)

	register("services", `*[_type == "service"] | order(order asc) {
  _id,
  identifier,
  emoji,
  title,
  description,
  ctaText,
  ctaLink,
  isFeatured,
  featuredContent {
    sectionTitle,
    what { title, description },
    who { title, items[] },
    outcomes { title, items[] },
    timeline { title, items[] },
    ctaText
  },
  order
}`)

	register("innovations", `*[_type == "innovation"] | order(order asc) {
  _id, identifier, emoji, title, description, ctaText, ctaLink, order
}`)

	register("publications", `*[_type == "publication"] | order(year desc, order asc) {
  _id, title, journal, description, year, ctaText, link, order
}`)

	register("guides", `*[_type == "guide"] | order(category, order asc) {`+guideFields+`
}`)

	register("guides_by_category", `*[_type == "guide" && category == $category] | order(order asc) {`+guideFields+`
}`, "category")

	register("faqs", `*[_type == "faq"] | order(order asc) {
  _id, identifier, question, answer, category, order
}`)

	register("study_content", `*[_type == "studyContent"] | order(order asc) {`+studyContentFields+`
}`)

	register("study_content_by_type", `*[_type == "studyContent" && contentType == $contentType] | order(order asc) {`+studyContentFields+`
}`, "contentType")

	register("testimonials", `*[_type == "testimonial"] | order(order asc) {
  _id, author, rating, ratingNumber, text, image, order
}`)
}
