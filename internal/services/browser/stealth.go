package browser

// stealthScript runs before every document loads to mask the most common
// headless-detection probes. Defacement kits increasingly serve clean
// pages to obvious bots.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
delete navigator.__proto__.webdriver;

Object.defineProperty(screen, 'colorDepth', { get: () => 24 });
Object.defineProperty(screen, 'pixelDepth', { get: () => 24 });

if (navigator.getBattery === undefined) {
	navigator.getBattery = () => Promise.resolve({
		charging: true,
		chargingTime: 0,
		dischargingTime: Infinity,
		level: 1.0,
	});
}

Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5],
});
Object.defineProperty(navigator, 'languages', {
	get: () => ['en-US', 'en'],
});
`
