package form

// DOM scripts used as last-resort strategies. Each takes a single argument
// object and returns true only when it performed the interaction.

const fillByLabelScript = `({label, value}) => {
	for (const el of document.querySelectorAll('label')) {
		if (!el.textContent.toLowerCase().includes(label)) continue;
		const forId = el.getAttribute('for');
		let input = forId ? document.getElementById(forId) : null;
		if (!input) input = el.querySelector('input, textarea');
		if (!input) input = el.nextElementSibling;
		if (input && (input.tagName === 'INPUT' || input.tagName === 'TEXTAREA')) {
			input.scrollIntoView({block: 'center'});
			input.focus();
			input.value = value;
			input.dispatchEvent(new Event('input', {bubbles: true}));
			input.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
}`

const clickByTextScript = `({label}) => {
	for (const el of document.querySelectorAll('button, a, [role="button"], input[type="submit"]')) {
		const text = (el.textContent || '').toLowerCase();
		const aria = (el.getAttribute('aria-label') || '').toLowerCase();
		const value = (el.value || '').toLowerCase();
		if (text.includes(label) || aria.includes(label) || value.includes(label)) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}
	}
	return false;
}`

const checkByLabelScript = `({label}) => {
	const isBox = (n) => n && n.tagName === 'INPUT' && n.type === 'checkbox';
	for (const el of document.querySelectorAll('label')) {
		if (!el.textContent.toLowerCase().includes(label)) continue;
		const forId = el.getAttribute('for');
		const candidates = [
			el.querySelector('input[type="checkbox"]'),
			el.previousElementSibling,
			el.nextElementSibling,
			forId ? document.getElementById(forId) : null,
		];
		const box = candidates.find(isBox);
		if (box) {
			box.scrollIntoView({block: 'center'});
			if (!box.checked) box.click();
			return true;
		}
	}
	return false;
}`

const radioByTextScript = `({value}) => {
	const nodes = Array.from(document.querySelectorAll('label, span, div'));
	const text = (n) => (n.textContent || '').trim().toLowerCase();
	const hit = nodes.find((n) => text(n) === value) || nodes.find((n) => text(n).includes(value));
	if (!hit) return false;
	const isRadio = (n) => n && n.tagName === 'INPUT' && n.type === 'radio';
	const radio = [
		hit.querySelector('input[type="radio"]'),
		hit.previousElementSibling,
		hit.parentElement && hit.parentElement.querySelector('input[type="radio"]'),
	].find(isRadio);
	const target = radio || hit;
	target.scrollIntoView({block: 'center'});
	target.click();
	return true;
}`
