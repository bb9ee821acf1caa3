package engine

import "github.com/kingrea/procedure-runner/internal/driver"

// Portal controls, as Playwright selectors.
const (
	loginUser     driver.Locator = `#j_provider`
	loginClinic   driver.Locator = `#j_username`
	loginPassword driver.Locator = `#j_password_aux`
	loginSubmit   driver.Locator = `#sub`
	loginCancel   driver.Locator = `#Form\:btnCancel`

	checkInMenu         driver.Locator = `#iconFormMenu\:j_id161\:j_id165`
	noCardButton        driver.Locator = `#Form\:no-card2`
	noCardDialog        driver.Locator = `#mpNoCardContentDiv`
	cardInput           driver.Locator = `#insuranceNoCardForm\:registrationId`
	justificationSelect driver.Locator = `#insuranceNoCardForm\:justicationSend\:justificationID`
	justificationSend   driver.Locator = `#insuranceNoCardForm\:btnSend`
	crossCoverageOK     driver.Locator = `#insuranceNoCardForm\:btnOK`
	confirmButton       driver.Locator = `#formError\:btnReturn`

	noBioButton driver.Locator = `input[value="REGISTRO SEM BIOMETRIA"]`
	noBioDialog driver.Locator = `#mpNoBioCDiv`
	bioSelect   driver.Locator = `select[name^="insuranceNoBioForm:justicationSend:"]`
	bioSend     driver.Locator = `#insuranceNoBioForm\:btnSend2`

	firstAnswer      driver.Locator = `#Form\:firstAnswer`
	secondAnswer     driver.Locator = `input[name="Form:j_id304"]`
	thirdAnswer      driver.Locator = `input[name="Form:j_id308"]`
	validationSubmit driver.Locator = `#Form\:btnSend`

	contactModal  driver.Locator = `#mpUpdateInsuranceUserContact`
	contactCancel driver.Locator = `#updateInsuraceUserContactForm\:j_id596`
	refreshIcon   driver.Locator = `img[src="/autorizador/images/refresh-icon.png"]`
	guidesTable   driver.Locator = `#Form\:guides\:guides_grid`
	guidesRows    driver.Locator = `#Form\:guides\:guides_grid tr`

	dateInput     driver.Locator = `#Form\:procedures\:0\:date`
	operatorOpen  driver.Locator = `#Form\:executantTable img[src*="search.png"]`
	operatorList  driver.Locator = `#Zoom_Professional\:providers`
	operatorLinks driver.Locator = `#Zoom_Professional\:providers a.link`
	executeButton driver.Locator = `#Form\:j_id1127`

	resultDialog  driver.Locator = `#mpErrorsContentTable`
	resultMessage driver.Locator = `.rich-messages-label`
	resultReturn  driver.Locator = `#formError\:btnReturn`
	servicesTable driver.Locator = `#Form\:servicesTable`
	servicesCell  driver.Locator = `#Form\:servicesTable tbody tr:first-child td:first-child span`
)

// actionLink is the second link of the action cell of a guides grid row.
func actionLink(row int) driver.Locator {
	return guidesRows.Nth(row).Then("td").Nth(5).Then("a").Nth(1)
}
