package tui

import "github.com/qubitpage/qbp/internal/page"

const (
	tabBarClass   = "qbp-tabs"
	tabClass      = "qbp-tab"
	tabPanelClass = "qbp-tab-panel"
	modalClass    = "qbp-modal"
	activeClass   = "active"
	hiddenClass   = "hidden"
)

func scanTabs(doc *page.Document) []*page.Element {
	var tabs []*page.Element
	for _, bar := range doc.Root().FindAll(page.Class(tabBarClass)) {
		tabs = append(tabs, bar.FindAll(page.Class(tabClass))...)
	}
	return tabs
}

// activateTab marks tab as the only active tab of its bar. When the tab names
// a panel, every panel beside the bar is hidden and the named one shown.
func activateTab(tab *page.Element) {
	bar := closest(tab, tabBarClass)
	if bar == nil {
		return
	}
	for _, t := range bar.FindAll(page.Class(tabClass)) {
		t.RemoveClass(activeClass)
	}
	tab.AddClass(activeClass)

	panel := tab.Data("panel")
	if panel == "" {
		return
	}
	parent := bar.Parent()
	if parent == nil {
		return
	}
	for _, p := range parent.FindAll(page.Class(tabPanelClass)) {
		p.AddClass(hiddenClass)
	}
	if target := parent.FindID(panel); target != nil {
		target.RemoveClass(hiddenClass)
	}
}

// dismissModal hides modal when the click landed on the modal element itself
// (its backdrop) rather than on its content.
func dismissModal(modal, target *page.Element) bool {
	if modal == nil || target == nil || !modal.Same(target) {
		return false
	}
	modal.AddClass(hiddenClass)
	return true
}

func openModal(doc *page.Document) *page.Element {
	for _, m := range doc.Root().FindAll(page.Class(modalClass)) {
		if !m.HasClass(hiddenClass) {
			return m
		}
	}
	return nil
}

func closest(el *page.Element, class string) *page.Element {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p.HasClass(class) {
			return p
		}
	}
	return nil
}
