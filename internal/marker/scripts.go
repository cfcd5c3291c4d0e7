package marker

const (
	idAttr    = "data-visionfill-id"
	epochAttr = "data-visionfill-epoch"
)

// injectScript tags visible interactive elements in DOM order, draws a
// numbered outline over each and returns their descriptions.
const injectScript = `(epoch) => {
	document.querySelectorAll('.visionfill-marker').forEach((n) => n.remove());
	const selectors = [
		'input:not([type="hidden"])', 'textarea', 'select', 'button',
		'[role="button"]', '[role="link"]', '[role="checkbox"]', '[role="radio"]',
		'[role="tab"]', '[role="menuitem"]', '[role="option"]', '[role="combobox"]',
		'[role="listbox"]', '[role="switch"]', '[role="textbox"]',
		'a[href]', '[onclick]', '[tabindex]:not([tabindex="-1"])',
		'[contenteditable="true"]', 'label[for]'
	];
	const markers = [];
	let id = 1;
	for (const el of document.querySelectorAll(selectors.join(', '))) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		if (r.bottom < 0 || r.top > window.innerHeight) continue;
		if (r.right < 0 || r.left > window.innerWidth) continue;

		el.setAttribute('data-visionfill-id', String(id));
		el.setAttribute('data-visionfill-epoch', String(epoch));

		const box = document.createElement('div');
		box.className = 'visionfill-marker';
		box.style.cssText = 'position:fixed;left:' + (r.left - 2) + 'px;top:' + (r.top - 2) + 'px;' +
			'width:' + (r.width + 4) + 'px;height:' + (r.height + 4) + 'px;' +
			'border:2px solid #FF0000;background:transparent;pointer-events:none;' +
			'z-index:2147483647;box-sizing:border-box;';
		const badge = document.createElement('div');
		badge.textContent = String(id);
		badge.style.cssText = 'position:absolute;top:-12px;left:-2px;background:#FF0000;color:#fff;' +
			'font:bold 10px Arial,sans-serif;line-height:1.2;padding:1px 4px;border-radius:2px;';
		box.appendChild(badge);
		document.body.appendChild(box);

		markers.push({
			id: id,
			tag: el.tagName.toLowerCase(),
			type: el.type || '',
			name: el.name || '',
			placeholder: el.placeholder || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			text: (el.innerText || '').trim().substring(0, 50),
			rect: {
				x: r.left, y: r.top, width: r.width, height: r.height,
				centerX: r.left + r.width / 2, centerY: r.top + r.height / 2
			}
		});
		id++;
	}
	return markers;
}`

const removeScript = `() => {
	document.querySelectorAll('.visionfill-marker').forEach((n) => n.remove());
	document.querySelectorAll('[data-visionfill-id]').forEach((n) => {
		n.removeAttribute('data-visionfill-id');
		n.removeAttribute('data-visionfill-epoch');
	});
	return true;
}`

const infoScript = `({id, epoch}) => {
	const el = document.querySelector('[data-visionfill-id="' + id + '"][data-visionfill-epoch="' + epoch + '"]');
	if (!el) return {found: false, visible: false};
	const r = el.getBoundingClientRect();
	return {
		found: true,
		visible: r.width > 0 && r.height > 0,
		rect: {
			x: r.left, y: r.top, width: r.width, height: r.height,
			centerX: r.left + r.width / 2, centerY: r.top + r.height / 2
		}
	};
}`
